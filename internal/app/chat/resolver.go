package chat

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	domainchat "campusmarket/internal/domain/chat"
	"campusmarket/internal/domain/shared/fault"
)

// resolveAttempts bounds the find/insert/re-fetch cycle. A second round is
// only needed when the conflicting row vanished before it could be re-read.
const resolveAttempts = 3

// Resolver maps a participant pair plus optional listing to exactly one
// conversation, creating it on first contact.
type Resolver struct {
	Conversations domainchat.ConversationRepository
	NewID         func() string
	Now           func() time.Time
	Logger        *slog.Logger
}

// Resolve returns the id of the conversation for (userA, userB, listingID).
func (r *Resolver) Resolve(ctx context.Context, userA, userB, listingID string) (domainchat.ConversationID, error) {
	key, err := domainchat.NewKey(userA, userB, listingID)
	if err != nil {
		return "", err
	}
	conv, err := r.ResolveKey(ctx, key)
	if err != nil {
		return "", err
	}
	return conv.ID, nil
}

// ResolveKey finds or creates the conversation row for key. A uniqueness
// violation on insert means a concurrent caller won the race; the winner's
// row is re-fetched and returned.
func (r *Resolver) ResolveKey(ctx context.Context, key domainchat.Key) (*domainchat.Conversation, error) {
	for attempt := 0; attempt < resolveAttempts; attempt++ {
		existing, err := r.Conversations.FindByKey(ctx, key)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, domainchat.ErrConversationNotFound) {
			return nil, fault.Transient("lookup conversation", err)
		}

		conv := domainchat.NewConversation(domainchat.ConversationID(r.newID()), key, r.now())
		err = r.Conversations.Insert(ctx, conv)
		if err == nil {
			if r.Logger != nil {
				r.Logger.Info("conversation created", "conversation_id", conv.ID, "key", key.String())
			}
			return &conv, nil
		}
		if !errors.Is(err, domainchat.ErrConversationExists) {
			return nil, fault.Transient("create conversation", err)
		}
		if r.Logger != nil {
			r.Logger.Debug("conversation insert lost race, re-fetching", "key", key.String(), "attempt", attempt+1)
		}
	}
	return nil, fault.Wrap(fault.KindTransient, "resolve conversation", errors.New("conversation kept disappearing after conflict"))
}

func (r *Resolver) newID() string {
	if r.NewID != nil {
		return r.NewID()
	}
	return uuid.NewString()
}

func (r *Resolver) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now().UTC()
}
