package memory

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Compile-time interface check.
var _ Store = (*MemStore)(nil)

// MemStore is an in-process [Store] used by tests and the "memory" driver in
// dev mode. A single mutex serializes all access, which trivially satisfies
// the one-writer ordering guarantee. Contents do not survive a restart.
type MemStore struct {
	mu      sync.Mutex
	records []Record
	nextID  int64
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{nextID: 1}
}

// Recall implements Store. Rows are scanned in insertion order and the first
// containment match wins.
func (s *MemStore) Recall(_ context.Context, query string) (string, error) {
	q := strings.ToLower(query)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if strings.Contains(strings.ToLower(r.UserInput), q) {
			return r.BotResponse, nil
		}
	}
	return "", ErrNotFound
}

// Append implements Store.
func (s *MemStore) Append(_ context.Context, userInput, botResponse string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := Record{
		ID:          s.nextID,
		UserInput:   userInput,
		BotResponse: botResponse,
		CreatedAt:   time.Now().UTC(),
	}
	s.nextID++
	s.records = append(s.records, r)
	return r, nil
}

// Recent implements Store. Rows are returned newest first.
func (s *MemStore) Recent(_ context.Context, limit int) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.records)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Record, 0, n)
	for i := len(s.records) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.records[i])
	}
	return out, nil
}

// Ping implements Store. A MemStore is always reachable.
func (s *MemStore) Ping(context.Context) error { return nil }

// Close implements Store. No resources to release.
func (s *MemStore) Close() {}

// Len returns the number of stored rows. Exposed for tests asserting that a
// recall hit does not grow the log.
func (s *MemStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
