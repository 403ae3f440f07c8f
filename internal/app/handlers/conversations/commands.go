package conversations

import (
	"context"
	"errors"

	appchat "campusmarket/internal/app/chat"
	"campusmarket/internal/app/commands"
	domainchat "campusmarket/internal/domain/chat"
	"campusmarket/internal/domain/shared/fault"
)

const (
	startConversationKey  = "conversations.start"
	sendMessageKey        = "conversations.send_message"
	deleteConversationKey = "conversations.delete"
)

type StartConversationCommand struct {
	ActorID     string
	OtherUserID string
	ListingID   string
}

func (c StartConversationCommand) Key() string   { return startConversationKey }
func (c StartConversationCommand) Actor() string { return c.ActorID }

type StartConversationHandler struct {
	Resolver *appchat.Resolver
}

func (h *StartConversationHandler) Handle(ctx context.Context, cmd StartConversationCommand) (domainchat.ConversationID, error) {
	return h.Resolver.Resolve(ctx, cmd.ActorID, cmd.OtherUserID, cmd.ListingID)
}

type SendMessageCommand struct {
	ActorID        string
	ConversationID domainchat.ConversationID
	Content        string
}

func (c SendMessageCommand) Key() string   { return sendMessageKey }
func (c SendMessageCommand) Actor() string { return c.ActorID }

type SendMessageHandler struct {
	Messages *appchat.MessageService
}

func (h *SendMessageHandler) Handle(ctx context.Context, cmd SendMessageCommand) (domainchat.Message, error) {
	return h.Messages.Append(ctx, appchat.AppendParams{
		ConversationID: cmd.ConversationID,
		SenderID:       cmd.ActorID,
		Content:        cmd.Content,
		Kind:           domainchat.KindUser,
	})
}

type DeleteConversationCommand struct {
	ActorID        string
	ConversationID domainchat.ConversationID
}

func (c DeleteConversationCommand) Key() string   { return deleteConversationKey }
func (c DeleteConversationCommand) Actor() string { return c.ActorID }

// DeleteConversationHandler hard-deletes a conversation with its messages.
// Only a participant may delete.
type DeleteConversationHandler struct {
	Conversations domainchat.ConversationRepository
}

func (h *DeleteConversationHandler) Handle(ctx context.Context, cmd DeleteConversationCommand) (struct{}, error) {
	conv, err := h.Conversations.ByID(ctx, cmd.ConversationID)
	if err != nil {
		if errors.Is(err, domainchat.ErrConversationNotFound) {
			return struct{}{}, err
		}
		return struct{}{}, fault.Transient("load conversation", err)
	}
	if !conv.Participants.Has(cmd.ActorID) {
		return struct{}{}, domainchat.ErrNotParticipant
	}
	if err := h.Conversations.Delete(ctx, conv.ID); err != nil {
		if errors.Is(err, domainchat.ErrConversationNotFound) {
			return struct{}{}, err
		}
		return struct{}{}, fault.Transient("delete conversation", err)
	}
	return struct{}{}, nil
}

var (
	_ commands.Handler[StartConversationCommand, domainchat.ConversationID] = (*StartConversationHandler)(nil)
	_ commands.Handler[SendMessageCommand, domainchat.Message]              = (*SendMessageHandler)(nil)
	_ commands.Handler[DeleteConversationCommand, struct{}]                 = (*DeleteConversationHandler)(nil)
)
