package requestlog

import (
	"context"
	"sync"
)

// MemoryStore keeps the last MaxLimit entries in a ring buffer. It is used
// when no database is configured.
type MemoryStore struct {
	mu      sync.Mutex
	entries []Entry
	next    int
	full    bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make([]Entry, MaxLimit)}
}

// Record stores an entry, overwriting the oldest once full.
func (s *MemoryStore) Record(ctx context.Context, e *Entry) error {
	prepare(e)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[s.next] = *e
	s.next = (s.next + 1) % len(s.entries)
	if s.next == 0 {
		s.full = true
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *MemoryStore) Recent(ctx context.Context, limit int) ([]Entry, error) {
	limit = ClampLimit(limit)

	s.mu.Lock()
	defer s.mu.Unlock()

	size := s.next
	if s.full {
		size = len(s.entries)
	}
	if limit > size {
		limit = size
	}

	out := make([]Entry, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (s.next - i + len(s.entries)) % len(s.entries)
		out = append(out, s.entries[idx])
	}
	return out, nil
}
