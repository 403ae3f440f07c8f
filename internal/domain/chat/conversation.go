package chat

import (
	"context"
	"time"

	"campusmarket/internal/domain/shared/fault"
)

var (
	ErrInvalidParticipants  = fault.New(fault.KindValidation, "chat: a conversation needs two distinct participants")
	ErrConversationNotFound = fault.New(fault.KindNotFound, "chat: conversation not found")
	ErrConversationExists   = fault.New(fault.KindConflict, "chat: conversation already exists")
	ErrNotParticipant       = fault.New(fault.KindForbidden, "chat: not a conversation participant")
)

type ConversationID string

// Conversation is the deduplicated channel between two users, optionally
// scoped to one listing.
type Conversation struct {
	ID           ConversationID
	Participants Pair
	ListingID    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewConversation builds a fresh row for key.
func NewConversation(id ConversationID, key Key, now time.Time) Conversation {
	now = now.UTC()
	return Conversation{
		ID:           id,
		Participants: key.Pair,
		ListingID:    key.ListingID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Key returns the uniqueness key of the conversation.
func (c Conversation) Key() Key {
	return Key{Pair: c.Participants, ListingID: c.ListingID}
}

// ConversationRepository persists conversations. Implementations must
// enforce uniqueness of Key at the storage layer and report a violation on
// Insert as ErrConversationExists.
type ConversationRepository interface {
	FindByKey(ctx context.Context, key Key) (*Conversation, error)
	Insert(ctx context.Context, conv Conversation) error
	ByID(ctx context.Context, id ConversationID) (*Conversation, error)
	// ListForUser returns the user's conversations, most recently updated first.
	ListForUser(ctx context.Context, userID string) ([]Conversation, error)
	Touch(ctx context.Context, id ConversationID, at time.Time) error
	// Delete removes the conversation together with its messages.
	Delete(ctx context.Context, id ConversationID) error
}
