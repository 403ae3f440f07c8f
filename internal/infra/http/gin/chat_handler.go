package ginserver

import (
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"campusmarket/internal/app/coordinator"
	"campusmarket/internal/app/dto"
	domainchat "campusmarket/internal/domain/chat"
)

// ChatHandler exposes conversations, messages and the unread cursor.
type ChatHandler struct {
	Coordinator *coordinator.Coordinator
	Logger      *slog.Logger
}

type startConversationRequest struct {
	OtherUserID string `json:"other_user_id"`
	ListingID   string `json:"listing_id"`
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

func (h ChatHandler) ListConversations(c *gin.Context) {
	s, ok := requireSession(c)
	if !ok {
		return
	}
	list, err := h.Coordinator.ListConversations(c.Request.Context(), s)
	if err != nil {
		respondError(c, h.Logger, "list conversations", err)
		return
	}
	c.JSON(http.StatusOK, dto.NewConversationList(list))
}

// StartConversation returns the existing conversation for the pair and
// listing, creating it on first contact.
func (h ChatHandler) StartConversation(c *gin.Context) {
	s, ok := requireSession(c)
	if !ok {
		return
	}
	var req startConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	id, err := h.Coordinator.StartOrFindConversation(c.Request.Context(), s, strings.TrimSpace(req.OtherUserID), req.ListingID)
	if err != nil {
		respondError(c, h.Logger, "start conversation", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": string(id)})
}

func (h ChatHandler) DeleteConversation(c *gin.Context) {
	s, ok := requireSession(c)
	if !ok {
		return
	}
	if err := h.Coordinator.DeleteConversation(c.Request.Context(), s, domainchat.ConversationID(c.Param("id"))); err != nil {
		respondError(c, h.Logger, "delete conversation", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h ChatHandler) ListMessages(c *gin.Context) {
	s, ok := requireSession(c)
	if !ok {
		return
	}
	msgs, err := h.Coordinator.ListMessages(c.Request.Context(), s, domainchat.ConversationID(c.Param("id")))
	if err != nil {
		respondError(c, h.Logger, "list messages", err)
		return
	}
	c.JSON(http.StatusOK, dto.NewChatMessageList(msgs))
}

func (h ChatHandler) SendMessage(c *gin.Context) {
	s, ok := requireSession(c)
	if !ok {
		return
	}
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	msg, err := h.Coordinator.SendMessage(c.Request.Context(), s, domainchat.ConversationID(c.Param("id")), req.Content)
	if err != nil {
		respondError(c, h.Logger, "send message", err)
		return
	}
	c.JSON(http.StatusCreated, dto.NewChatMessage(msg))
}

func (h ChatHandler) Unread(c *gin.Context) {
	s, ok := requireSession(c)
	if !ok {
		return
	}
	count, err := h.Coordinator.UnreadCount(c.Request.Context(), s)
	if err != nil {
		respondError(c, h.Logger, "unread count", err)
		return
	}
	c.JSON(http.StatusOK, dto.UnreadState{Unread: count > 0, Count: count})
}

func (h ChatHandler) MarkSeen(c *gin.Context) {
	s, ok := requireSession(c)
	if !ok {
		return
	}
	at, err := h.Coordinator.MarkSeen(c.Request.Context(), s)
	if err != nil {
		respondError(c, h.Logger, "mark seen", err)
		return
	}
	c.JSON(http.StatusOK, dto.UnreadState{LastSeen: &at})
}

var _ ChatHTTP = ChatHandler{}
