package chat

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"campusmarket/internal/app/policies"
	domainchat "campusmarket/internal/domain/chat"
	"campusmarket/internal/domain/shared/fault"
)

// MessageService is the append-only message log of a conversation.
type MessageService struct {
	Conversations domainchat.ConversationRepository
	Messages      domainchat.MessageRepository
	Publisher     policies.MessagePublisher
	NewID         func() string
	Now           func() time.Time
	Logger        *slog.Logger
}

type AppendParams struct {
	ConversationID domainchat.ConversationID
	SenderID       string
	Content        string
	Kind           domainchat.MessageKind
}

// Conversation loads a conversation by id.
func (s *MessageService) Conversation(ctx context.Context, id domainchat.ConversationID) (*domainchat.Conversation, error) {
	conv, err := s.Conversations.ByID(ctx, id)
	if err != nil {
		if errors.Is(err, domainchat.ErrConversationNotFound) {
			return nil, err
		}
		return nil, fault.Transient("load conversation", err)
	}
	return conv, nil
}

// List returns the current durable history ascending by (CreatedAt, ID).
func (s *MessageService) List(ctx context.Context, id domainchat.ConversationID) ([]domainchat.Message, error) {
	if _, err := s.Conversation(ctx, id); err != nil {
		return nil, err
	}
	msgs, err := s.Messages.List(ctx, id)
	if err != nil {
		return nil, fault.Transient("list messages", err)
	}
	domainchat.SortMessages(msgs)
	return dedupe(msgs), nil
}

// Append validates and stores a message, then bumps the conversation's
// UpdatedAt and emits an insert notification. Only the insert itself can
// fail the call.
func (s *MessageService) Append(ctx context.Context, p AppendParams) (domainchat.Message, error) {
	msg, err := domainchat.NewMessage(domainchat.NewMessageParams{
		ID:             domainchat.MessageID(s.newID()),
		ConversationID: p.ConversationID,
		SenderID:       p.SenderID,
		Content:        p.Content,
		Kind:           p.Kind,
		CreatedAt:      s.now(),
	})
	if err != nil {
		return domainchat.Message{}, err
	}
	conv, err := s.Conversation(ctx, p.ConversationID)
	if err != nil {
		return domainchat.Message{}, err
	}
	if !conv.Participants.Has(msg.SenderID) {
		return domainchat.Message{}, domainchat.ErrNotParticipant
	}
	if err := s.Messages.Append(ctx, msg); err != nil {
		return domainchat.Message{}, fault.Transient("append message", err)
	}

	if err := s.Conversations.Touch(ctx, conv.ID, msg.CreatedAt); err != nil && s.Logger != nil {
		s.Logger.Warn("failed to touch conversation", "error", err, "conversation_id", conv.ID)
	}
	if s.Publisher != nil {
		evt := domainchat.MessagePosted{Message: msg, Participants: conv.Participants}
		if err := s.Publisher.Publish(ctx, evt); err != nil && s.Logger != nil {
			s.Logger.Warn("failed to publish message notification", "error", err, "conversation_id", conv.ID, "message_id", msg.ID)
		}
	}
	return msg, nil
}

func (s *MessageService) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

func (s *MessageService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// dedupe drops repeated ids from a sorted slice.
func dedupe(msgs []domainchat.Message) []domainchat.Message {
	if len(msgs) < 2 {
		return msgs
	}
	seen := make(map[domainchat.MessageID]struct{}, len(msgs))
	out := msgs[:0]
	for _, m := range msgs {
		if _, ok := seen[m.ID]; ok {
			continue
		}
		seen[m.ID] = struct{}{}
		out = append(out, m)
	}
	return out
}
