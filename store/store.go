package store

import (
	"context"
	"sync"
)

// SeenStore tracks which items have already been collected so that records
// are published at most once across runs.
type SeenStore interface {
	// MarkSeen records the item and reports whether it was new
	MarkSeen(ctx context.Context, source string, id string) (bool, error)
	Close(ctx context.Context) error
}

// MemoryStore keeps seen items in memory. Used in tests and for runs
// without a document store, where it still deduplicates within the run.
type MemoryStore struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewMemory() *MemoryStore {
	return &MemoryStore{seen: make(map[string]struct{})}
}

func (s *MemoryStore) MarkSeen(ctx context.Context, source string, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := source + ":" + id
	if _, ok := s.seen[key]; ok {
		return false, nil
	}
	s.seen[key] = struct{}{}
	return true, nil
}

func (s *MemoryStore) Close(ctx context.Context) error {
	return nil
}
