package numbering

import (
	"context"
	"sync"
)

// MemoryStore keeps sequences in process memory. Suitable for tests and
// single-process tools only.
type MemoryStore struct {
	mu   sync.Mutex
	last map[string]int64
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{last: make(map[string]int64)}
}

// Allocate implements Store.
func (s *MemoryStore) Allocate(_ context.Context, scope string, floor int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.last[scope]
	if floor > n {
		n = floor
	}
	n++
	s.last[scope] = n
	return n, nil
}
