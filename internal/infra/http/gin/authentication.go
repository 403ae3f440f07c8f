package ginserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"campusmarket/internal/app/coordinator"
	"campusmarket/internal/app/policies"
	"campusmarket/internal/domain/shared/fault"
)

const (
	principalContextKey = "campusmarket.principal"
	deviceHeader        = "X-Device-ID"
	defaultDevice       = "default"
)

type AuthMiddleware struct {
	Authenticator policies.Authenticator
	Logger        *slog.Logger
}

// Handle resolves the bearer token when one is sent. Anonymous requests pass
// through; handlers that need a user reject them.
func (m AuthMiddleware) Handle(c *gin.Context) {
	token := extractBearerToken(c.GetHeader("Authorization"))
	if token == "" || m.Authenticator == nil {
		c.Next()
		return
	}
	userID, err := m.Authenticator.Authenticate(c.Request.Context(), token)
	if err != nil {
		if !errors.Is(err, fault.ErrForbidden) && m.Logger != nil {
			m.Logger.Debug("token validation failed", "error", err)
		}
		c.Next()
		return
	}
	device := strings.TrimSpace(c.GetHeader(deviceHeader))
	if device == "" {
		device = defaultDevice
	}
	c.Set(principalContextKey, coordinator.Session{UserID: userID, DeviceID: device})
	c.Set("user_id", userID)
	c.Next()
}

func currentSession(c *gin.Context) (coordinator.Session, bool) {
	val, exists := c.Get(principalContextKey)
	if !exists {
		return coordinator.Session{}, false
	}
	s, ok := val.(coordinator.Session)
	return s, ok
}

func requireSession(c *gin.Context) (coordinator.Session, bool) {
	s, ok := currentSession(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "auth required"})
		return coordinator.Session{}, false
	}
	return s, true
}

func extractBearerToken(header string) string {
	if header == "" {
		return ""
	}
	if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
