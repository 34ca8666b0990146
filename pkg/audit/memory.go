package audit

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps entries in memory. It is intended for tests and
// one-shot command line runs.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	closed  bool
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*Entry),
		now:     time.Now,
	}
}

// Record stores a copy of entry.
func (s *MemoryStore) Record(ctx context.Context, entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if err := prepare(entry, s.now()); err != nil {
		return err
	}
	if _, ok := s.entries[entry.RunID]; ok {
		return storageError("memory", "record", ErrDuplicateRun)
	}
	s.entries[entry.RunID] = copyEntry(entry)
	return nil
}

// Get returns the entry for runID.
func (s *MemoryStore) Get(ctx context.Context, runID string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}
	e, ok := s.entries[runID]
	if !ok {
		return nil, ErrNotFound
	}
	return copyEntry(e), nil
}

// List returns matching entries, newest first.
func (s *MemoryStore) List(ctx context.Context, q *Query) ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}
	if q == nil {
		q = &Query{}
	}

	var out []*Entry
	for _, e := range s.entries {
		if matches(e, q) {
			out = append(out, copyEntry(e))
		}
	}
	sortNewestFirst(out)

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Count returns the number of entries.
func (s *MemoryStore) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, ErrClosed
	}
	return int64(len(s.entries)), nil
}

// DeleteBefore removes entries created before cutoff.
func (s *MemoryStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}
	var deleted int64
	for id, e := range s.entries {
		if e.CreatedAt.Before(cutoff) {
			delete(s.entries, id)
			deleted++
		}
	}
	return deleted, nil
}

// Trim removes the oldest entries beyond keep.
func (s *MemoryStore) Trim(ctx context.Context, keep int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}
	if int64(len(s.entries)) <= keep {
		return 0, nil
	}

	all := make([]*Entry, 0, len(s.entries))
	for _, e := range s.entries {
		all = append(all, e)
	}
	sortNewestFirst(all)

	var deleted int64
	for _, e := range all[max(keep, 0):] {
		delete(s.entries, e.RunID)
		deleted++
	}
	return deleted, nil
}

// Close marks the store closed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func matches(e *Entry, q *Query) bool {
	if q.Outcome != "" && e.Outcome != q.Outcome {
		return false
	}
	if q.DocumentType != "" && e.DocumentType != q.DocumentType {
		return false
	}
	if q.Since != nil && e.CreatedAt.Before(*q.Since) {
		return false
	}
	if q.Until != nil && e.CreatedAt.After(*q.Until) {
		return false
	}
	return true
}

func sortNewestFirst(entries []*Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.After(entries[j].CreatedAt)
		}
		return entries[i].RunID > entries[j].RunID
	})
}
