// Package realtime fans message-insert notifications out to live sessions
// and merges them into the view of the selected conversation.
package realtime

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	domainchat "campusmarket/internal/domain/chat"
)

const DefaultSubscriberBuffer = 64

var ErrHubClosed = errors.New("realtime: hub closed")

// Hub is the process-wide insert feed. A subscription only receives events
// of conversations its user takes part in. Publish never blocks: a
// subscriber whose buffer is full is marked lagged and must resync.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64
	buffer int
	closed bool
	Logger *slog.Logger
}

func NewHub(buffer int, logger *slog.Logger) *Hub {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	return &Hub{subs: make(map[uint64]*Subscription), buffer: buffer, Logger: logger}
}

// Subscription is one consumer of the feed.
type Subscription struct {
	id     uint64
	userID string
	hub    *Hub
	ch     chan domainchat.MessagePosted
	lagged chan struct{}
	missed atomic.Int64
	once   sync.Once
}

// Subscribe registers a consumer for userID's conversations; an empty userID
// receives everything. On a closed hub the channel is already closed.
func (h *Hub) Subscribe(userID string) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	sub := &Subscription{
		userID: userID,
		hub:    h,
		ch:     make(chan domainchat.MessagePosted, h.buffer),
		lagged: make(chan struct{}, 1),
	}
	if h.closed {
		sub.once.Do(func() { close(sub.ch) })
		return sub
	}
	h.nextID++
	sub.id = h.nextID
	h.subs[sub.id] = sub
	return sub
}

// Publish delivers evt to every interested subscriber without waiting on
// any of them.
func (h *Hub) Publish(ctx context.Context, evt domainchat.MessagePosted) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return ErrHubClosed
	}
	for _, sub := range h.subs {
		if sub.userID != "" && !evt.Participants.Has(sub.userID) {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
			sub.markLagged()
			if h.Logger != nil {
				h.Logger.Warn("realtime subscriber lagging", "subscription", sub.id, "user_id", sub.userID, "message_id", evt.Message.ID)
			}
		}
	}
	return nil
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close detaches every subscriber and rejects further publishes.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, sub := range h.subs {
		delete(h.subs, id)
		sub.once.Do(func() { close(sub.ch) })
	}
}

// C delivers pushed events; it is closed after Close.
func (s *Subscription) C() <-chan domainchat.MessagePosted {
	return s.ch
}

// Lagged fires once after one or more events were dropped.
func (s *Subscription) Lagged() <-chan struct{} {
	return s.lagged
}

// Missed returns and resets the number of dropped events.
func (s *Subscription) Missed() int64 {
	return s.missed.Swap(0)
}

func (s *Subscription) markLagged() {
	s.missed.Add(1)
	select {
	case s.lagged <- struct{}{}:
	default:
	}
}

// Close unsubscribes. Safe to call more than once.
func (s *Subscription) Close() {
	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, s.id)
	s.once.Do(func() { close(s.ch) })
}
