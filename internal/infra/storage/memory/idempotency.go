package memory

import (
	"context"
	"sync"
	"time"

	"campusmarket/internal/app/middleware"
)

// IdempotencyStore stores command outcomes in memory. Records older than ttl
// are treated as absent; a zero ttl keeps them forever.
type IdempotencyStore struct {
	mu    sync.RWMutex
	ttl   time.Duration
	now   func() time.Time
	items map[string]middleware.IdempotencyRecord
}

func NewIdempotencyStore(ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{
		ttl:   ttl,
		now:   time.Now,
		items: make(map[string]middleware.IdempotencyRecord),
	}
}

func (s *IdempotencyStore) Get(ctx context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.items[key]
	if !ok {
		return middleware.IdempotencyRecord{}, false, nil
	}
	if s.ttl > 0 && s.now().Sub(rec.OccurredAt) > s.ttl {
		return middleware.IdempotencyRecord{}, false, nil
	}
	return rec, true, nil
}

func (s *IdempotencyStore) Save(ctx context.Context, rec middleware.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[rec.Key] = rec
	return nil
}

var _ middleware.IdempotencyStore = (*IdempotencyStore)(nil)
