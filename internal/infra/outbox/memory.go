package outbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	appoutbox "campusmarket/internal/app/outbox"
)

// MemoryStore is the in-process outbox used without mongo. Sent entries are
// dropped.
type MemoryStore struct {
	mu      sync.Mutex
	entries []*Entry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

func (s *MemoryStore) Add(ctx context.Context, record appoutbox.EventRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.ID == record.ID {
			return fmt.Errorf("outbox: duplicate event id %s", record.ID)
		}
	}
	now := s.now().UTC()
	s.entries = append(s.entries, &Entry{
		ID:          record.ID,
		Name:        record.Name,
		Payload:     append([]byte(nil), record.Payload...),
		OccurredAt:  record.OccurredAt,
		Aggregate:   record.Aggregate,
		Headers:     record.Headers,
		State:       stateNew,
		NextAttempt: now,
		CreatedAt:   now,
	})
	return nil
}

func (s *MemoryStore) Claim(ctx context.Context, workerID string) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	for _, e := range s.entries {
		if (e.State == stateNew || e.State == stateFailed) && !e.NextAttempt.After(now) {
			e.State = stateClaimed
			e.ClaimedBy = workerID
			e.ClaimedAt = now
			out := *e
			return &out, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) MarkSent(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.entries {
		if e.ID == id {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *MemoryStore) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.ID == id {
			e.State = stateFailed
			e.NextAttempt = next
			e.LastError = errMsg
			e.Attempts++
		}
	}
	return nil
}

// Pending returns the number of entries not yet sent.
func (s *MemoryStore) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

var (
	_ appoutbox.Outbox = (*MemoryStore)(nil)
	_ Source           = (*MemoryStore)(nil)
)
