package memory

import (
	"context"
	"sync"
	"time"

	"campusmarket/internal/app/unread"
)

type cursorKey struct {
	userID   string
	deviceID string
}

// CursorStore keeps read cursors per user and device.
type CursorStore struct {
	mu    sync.RWMutex
	items map[cursorKey]time.Time
}

func NewCursorStore() *CursorStore {
	return &CursorStore{items: make(map[cursorKey]time.Time)}
}

func (s *CursorStore) LastSeen(ctx context.Context, userID, deviceID string) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	at, ok := s.items[cursorKey{userID, deviceID}]
	return at, ok, nil
}

// SetLastSeen never moves a cursor backwards.
func (s *CursorStore) SetLastSeen(ctx context.Context, userID, deviceID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := cursorKey{userID, deviceID}
	if prev, ok := s.items[key]; ok && prev.After(at) {
		return nil
	}
	s.items[key] = at.UTC()
	return nil
}

var _ unread.CursorStore = (*CursorStore)(nil)
