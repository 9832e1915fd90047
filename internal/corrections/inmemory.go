package corrections

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore is a simple in-process corrections store for local/dev use.
type InMemoryStore struct {
	mu      sync.RWMutex
	records []Correction
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Save(_ context.Context, c Correction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	s.records = append(s.records, c)
	return nil
}

func (s *InMemoryStore) Unprocessed(_ context.Context, limit int) ([]Correction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 {
		limit = 50
	}
	var out []Correction
	for _, c := range s.records {
		if c.Processed {
			continue
		}
		out = append(out, c)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *InMemoryStore) MarkProcessed(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	for i := range s.records {
		if set[s.records[i].ID] {
			s.records[i].Processed = true
		}
	}
	return nil
}

func (s *InMemoryStore) Close() error { return nil }
