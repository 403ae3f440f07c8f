package unread

import (
	"sync"
	"time"

	domainchat "campusmarket/internal/domain/chat"
)

// Indicator is the live unread flag of one session. It starts from the
// tracker's answer and then follows the push feed: any message authored by
// someone else raises it immediately, only MarkSeen lowers it.
type Indicator struct {
	mu       sync.Mutex
	userID   string
	unread   bool
	lastSeen time.Time
	// latestInbound is the newest CreatedAt observed from someone else.
	latestInbound time.Time
}

func NewIndicator(userID string, unread bool, lastSeen time.Time) *Indicator {
	return &Indicator{userID: userID, unread: unread, lastSeen: lastSeen}
}

// Observe feeds one pushed message and reports whether the flag changed.
// Pushes are not compared against the cursor: a message that raced with
// MarkSeen shows as unread.
func (i *Indicator) Observe(msg domainchat.Message) bool {
	if msg.SenderID == i.userID {
		return false
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	if msg.CreatedAt.After(i.latestInbound) {
		i.latestInbound = msg.CreatedAt
	}
	return i.raiseLocked()
}

// Raise sets the flag and reports whether it was lowered before.
func (i *Indicator) Raise() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.raiseLocked()
}

func (i *Indicator) raiseLocked() bool {
	if i.unread {
		return false
	}
	i.unread = true
	return true
}

// MarkSeen records the cursor the store accepted and lowers the flag unless
// a pushed message at or after the cursor was already observed. It reports
// whether the flag is now lowered.
func (i *Indicator) MarkSeen(at time.Time) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.latestInbound.Before(at) {
		i.unread = false
	}
	if at.After(i.lastSeen) {
		i.lastSeen = at
	}
	return !i.unread
}

func (i *Indicator) Unread() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.unread
}

func (i *Indicator) LastSeen() time.Time {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.lastSeen
}
