package realtime

import (
	"context"
	"time"
)

// Coalescer runs fn at most once per burst of requests. A request made while
// fn is running schedules exactly one more run.
type Coalescer struct {
	fn       func(ctx context.Context)
	debounce time.Duration
	pending  chan struct{}
}

func NewCoalescer(debounce time.Duration, fn func(ctx context.Context)) *Coalescer {
	return &Coalescer{fn: fn, debounce: debounce, pending: make(chan struct{}, 1)}
}

// Request asks for a run without blocking.
func (c *Coalescer) Request() {
	select {
	case c.pending <- struct{}{}:
	default:
	}
}

// Run serves requests until ctx is done.
func (c *Coalescer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.pending:
		}
		if c.debounce > 0 {
			timer := time.NewTimer(c.debounce)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
			// requests made during the debounce window are served by this run
			select {
			case <-c.pending:
			default:
			}
		}
		c.fn(ctx)
	}
}
