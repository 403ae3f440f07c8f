package dto

import (
	"time"

	appchat "campusmarket/internal/app/chat"
	domainchat "campusmarket/internal/domain/chat"
)

// ConversationSummary is one row of the conversation list.
type ConversationSummary struct {
	ID                  string          `json:"id"`
	OtherUserID         string          `json:"other_user_id"`
	OtherUserName       string          `json:"other_user_name"`
	OtherUserAvatar     string          `json:"other_user_avatar,omitempty"`
	OtherUserUniversity string          `json:"other_user_university,omitempty"`
	Listing             *ListingPreview `json:"listing,omitempty"`
	LastMessage         string          `json:"last_message,omitempty"`
	LastMessageAt       *time.Time      `json:"last_message_at,omitempty"`
	LastSenderID        string          `json:"last_sender_id,omitempty"`
	UpdatedAt           time.Time       `json:"updated_at"`
	Unread              bool            `json:"unread"`
}

type ListingPreview struct {
	ID       string `json:"id"`
	Title    string `json:"title,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
	Price    *Money `json:"price,omitempty"`
}

type ConversationList struct {
	Items []ConversationSummary `json:"items"`
}

type ChatMessage struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Content        string    `json:"content"`
	Kind           string    `json:"kind"`
	CreatedAt      time.Time `json:"created_at"`
}

type ChatMessageList struct {
	Items []ChatMessage `json:"items"`
}

type UnreadState struct {
	Unread   bool       `json:"unread"`
	Count    int        `json:"count"`
	LastSeen *time.Time `json:"last_seen,omitempty"`
}

func NewConversationList(items []appchat.Summary) ConversationList {
	out := ConversationList{Items: make([]ConversationSummary, 0, len(items))}
	for _, s := range items {
		out.Items = append(out.Items, NewConversationSummary(s))
	}
	return out
}

func NewConversationSummary(s appchat.Summary) ConversationSummary {
	row := ConversationSummary{
		ID:                  string(s.ID),
		OtherUserID:         s.OtherUserID,
		OtherUserName:       s.OtherUserName,
		OtherUserAvatar:     s.OtherUserAvatar,
		OtherUserUniversity: s.OtherUserUniversity,
		LastMessage:         s.LastMessage,
		LastSenderID:        s.LastSenderID,
		UpdatedAt:           s.UpdatedAt,
		Unread:              s.Unread,
	}
	if !s.LastMessageAt.IsZero() {
		at := s.LastMessageAt
		row.LastMessageAt = &at
	}
	row.Listing = newListingPreview(s.Listing)
	return row
}

func newListingPreview(p *appchat.ListingPreview) *ListingPreview {
	if p == nil {
		return nil
	}
	preview := &ListingPreview{
		ID:       string(p.ID),
		Title:    p.Title,
		ImageURL: p.ImageURL,
	}
	if p.Price.Currency != "" {
		price := NewMoney(p.Price)
		preview.Price = &price
	}
	return preview
}

func NewChatMessage(m domainchat.Message) ChatMessage {
	return ChatMessage{
		ID:             string(m.ID),
		ConversationID: string(m.ConversationID),
		SenderID:       m.SenderID,
		Content:        m.Content,
		Kind:           string(m.Kind),
		CreatedAt:      m.CreatedAt,
	}
}

func NewChatMessageList(msgs []domainchat.Message) ChatMessageList {
	out := ChatMessageList{Items: make([]ChatMessage, 0, len(msgs))}
	for _, m := range msgs {
		out.Items = append(out.Items, NewChatMessage(m))
	}
	return out
}
