package chat

import (
	"context"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"campusmarket/internal/domain/shared/fault"
)

const MaxContentLength = 4000

var (
	ErrEmptyContent   = fault.New(fault.KindValidation, "chat: message content is empty")
	ErrContentTooLong = fault.New(fault.KindValidation, "chat: message content is too long")
	ErrMissingSender  = fault.New(fault.KindValidation, "chat: sender is required")
)

type MessageID string

type MessageKind string

const (
	KindUser   MessageKind = "user"
	KindSystem MessageKind = "system"
)

// Message is immutable once stored.
type Message struct {
	ID             MessageID
	ConversationID ConversationID
	SenderID       string
	Content        string
	Kind           MessageKind
	CreatedAt      time.Time
}

type NewMessageParams struct {
	ID             MessageID
	ConversationID ConversationID
	SenderID       string
	Content        string
	Kind           MessageKind
	CreatedAt      time.Time
}

// NewMessage validates and normalizes a message before it is appended.
func NewMessage(p NewMessageParams) (Message, error) {
	content := strings.TrimSpace(p.Content)
	if content == "" {
		return Message{}, ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return Message{}, ErrContentTooLong
	}
	sender := strings.TrimSpace(p.SenderID)
	if sender == "" {
		return Message{}, ErrMissingSender
	}
	kind := p.Kind
	if kind == "" {
		kind = KindUser
	}
	return Message{
		ID:             p.ID,
		ConversationID: p.ConversationID,
		SenderID:       sender,
		Content:        content,
		Kind:           kind,
		CreatedAt:      p.CreatedAt.UTC(),
	}, nil
}

// Less orders messages by (CreatedAt, ID); the id breaks timestamp ties.
func Less(a, b Message) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// UnreadFor reports whether m counts as unread for userID given the cursor
// lastSeen. A zero cursor means nothing was ever seen; a message stamped at
// the cursor instant stays unread.
func (m Message) UnreadFor(userID string, lastSeen time.Time) bool {
	if m.SenderID == userID {
		return false
	}
	return lastSeen.IsZero() || !m.CreatedAt.Before(lastSeen)
}

// SortMessages sorts in place by Less.
func SortMessages(msgs []Message) {
	sort.SliceStable(msgs, func(i, j int) bool { return Less(msgs[i], msgs[j]) })
}

// MessageRepository is the append-only message log.
type MessageRepository interface {
	Append(ctx context.Context, msg Message) error
	// List returns the conversation's messages ascending by (CreatedAt, ID).
	List(ctx context.Context, id ConversationID) ([]Message, error)
	// Last returns the newest message, or nil when the conversation is empty.
	Last(ctx context.Context, id ConversationID) (*Message, error)
}

// InboundCounter counts messages addressed to userID: messages in the user's
// conversations authored by somebody else, not older than since. A zero
// since counts everything.
type InboundCounter interface {
	CountInbound(ctx context.Context, userID string, since time.Time) (int, error)
}
