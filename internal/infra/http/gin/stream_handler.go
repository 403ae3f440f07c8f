package ginserver

import (
	"io"
	"log/slog"
	"time"

	gin "github.com/gin-gonic/gin"

	"campusmarket/internal/app/coordinator"
	"campusmarket/internal/app/dto"
	"campusmarket/internal/app/realtime"
	domainchat "campusmarket/internal/domain/chat"
)

const defaultKeepAlive = 25 * time.Second

// StreamHandler serves a live session as server-sent events: pushed
// messages of the selected conversation, the unread flag, conversation list
// refreshes and view state changes.
type StreamHandler struct {
	Coordinator *coordinator.Coordinator
	KeepAlive   time.Duration
	Logger      *slog.Logger
}

func (h StreamHandler) Stream(c *gin.Context) {
	s, ok := requireSession(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	live, err := h.Coordinator.Attach(ctx, s)
	if err != nil {
		respondError(c, h.Logger, "attach live session", err)
		return
	}
	defer live.Close()

	if id := c.Query("conversation_id"); id != "" {
		if err := live.Select(ctx, domainchat.ConversationID(id)); err != nil {
			respondError(c, h.Logger, "select conversation", err)
			return
		}
	}

	keepAlive := h.KeepAlive
	if keepAlive <= 0 {
		keepAlive = defaultKeepAlive
	}
	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("unread", gin.H{"unread": live.HasUnread()})
	c.Writer.Flush()

	updates := live.Updates()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			c.SSEvent("ping", gin.H{"at": time.Now().UTC()})
			return true
		case u, ok := <-updates:
			if !ok {
				return false
			}
			h.write(c, live, u)
			return true
		}
	})
}

func (h StreamHandler) write(c *gin.Context, live *coordinator.Live, u realtime.Update) {
	switch u.Kind {
	case realtime.UpdateMessage:
		if u.Message != nil {
			c.SSEvent("message", dto.NewChatMessage(*u.Message))
		}
	case realtime.UpdateUnread:
		c.SSEvent("unread", gin.H{"unread": live.HasUnread()})
	case realtime.UpdateConversations:
		c.SSEvent("conversations", dto.NewConversationList(live.Conversations()))
	case realtime.UpdateState:
		c.SSEvent("state", gin.H{"conversation_id": string(u.ConversationID), "state": string(u.State)})
	case realtime.UpdateError:
		msg := "update failed"
		if u.Err != nil {
			msg = u.Err.Error()
		}
		c.SSEvent("error", gin.H{"conversation_id": string(u.ConversationID), "error": msg})
	}
}

var _ StreamHTTP = StreamHandler{}
