package obs

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Check probes one dependency.
type Check func(ctx context.Context) error

// Checks runs every named probe and joins the failures.
type Checks map[string]Check

func (cs Checks) Run(ctx context.Context) error {
	var errs []error
	for name, check := range cs {
		if check == nil {
			continue
		}
		if err := check(ctx); err != nil {
			errs = append(errs, errors.New(name+": "+err.Error()))
		}
	}
	return errors.Join(errs...)
}

// HealthHandlers exposes endpoints for liveness and readiness checks.
type HealthHandlers struct {
	Ready   Check
	Timeout time.Duration
}

func (h HealthHandlers) Livez(c *gin.Context) {
	c.Status(http.StatusOK)
}

func (h HealthHandlers) Readyz(c *gin.Context) {
	if h.Ready != nil {
		timeout := h.Timeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		if err := h.Ready(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "error": err.Error()})
			return
		}
	}
	c.Status(http.StatusOK)
}
