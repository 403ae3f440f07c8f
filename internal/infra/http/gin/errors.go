package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"campusmarket/internal/domain/shared/fault"
)

// statusFor maps the error taxonomy onto HTTP.
func statusFor(err error) int {
	switch fault.KindOf(err) {
	case fault.KindValidation:
		return http.StatusBadRequest
	case fault.KindConflict:
		return http.StatusConflict
	case fault.KindInvalidTransition:
		return http.StatusUnprocessableEntity
	case fault.KindNotFound:
		return http.StatusNotFound
	case fault.KindForbidden:
		return http.StatusForbidden
	case fault.KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, logger *slog.Logger, op string, err error) {
	status := statusFor(err)
	_ = c.Error(err)
	body := gin.H{"error": err.Error()}
	if kind := fault.KindOf(err); kind != "" {
		body["kind"] = string(kind)
	}
	if status >= http.StatusInternalServerError {
		if logger != nil {
			logger.Error(op+" failed", "error", err, "request_id", c.GetString("request_id"))
		}
		if status == http.StatusInternalServerError {
			body = gin.H{"error": "internal error"}
		}
	}
	c.JSON(status, body)
}
