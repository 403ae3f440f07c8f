package conversations

import (
	"context"
	"time"

	appchat "campusmarket/internal/app/chat"
	"campusmarket/internal/app/queries"
	domainchat "campusmarket/internal/domain/chat"
)

const (
	listConversationsKey = "conversations.list"
	listMessagesKey      = "conversations.messages"
)

type ListConversationsQuery struct {
	ActorID  string
	LastSeen time.Time
}

func (q ListConversationsQuery) Key() string   { return listConversationsKey }
func (q ListConversationsQuery) Actor() string { return q.ActorID }

type ListConversationsHandler struct {
	Summaries *appchat.SummaryBuilder
}

func (h *ListConversationsHandler) Handle(ctx context.Context, q ListConversationsQuery) ([]appchat.Summary, error) {
	return h.Summaries.List(ctx, q.ActorID, q.LastSeen)
}

type ListMessagesQuery struct {
	ActorID        string
	ConversationID domainchat.ConversationID
}

func (q ListMessagesQuery) Key() string   { return listMessagesKey }
func (q ListMessagesQuery) Actor() string { return q.ActorID }

type ListMessagesHandler struct {
	Messages *appchat.MessageService
}

func (h *ListMessagesHandler) Handle(ctx context.Context, q ListMessagesQuery) ([]domainchat.Message, error) {
	conv, err := h.Messages.Conversation(ctx, q.ConversationID)
	if err != nil {
		return nil, err
	}
	if !conv.Participants.Has(q.ActorID) {
		return nil, domainchat.ErrNotParticipant
	}
	return h.Messages.List(ctx, q.ConversationID)
}

var (
	_ queries.Handler[ListConversationsQuery, []appchat.Summary] = (*ListConversationsHandler)(nil)
	_ queries.Handler[ListMessagesQuery, []domainchat.Message]   = (*ListMessagesHandler)(nil)
)
