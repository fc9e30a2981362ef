package store

import (
	"sync"
	"sync/atomic"

	"github.com/i474232898/pm25-data-api/internal/pm25"
)

// MemoryStore publishes immutable table snapshots. Reads load the current
// snapshot without locking; mutations are serialized by mu so that every
// read-modify-write starts from the latest published table.
type MemoryStore struct {
	mu      sync.Mutex
	current atomic.Pointer[pm25.Table]
}

// NewMemoryStore creates a MemoryStore publishing the initial table.
func NewMemoryStore(initial pm25.Table) *MemoryStore {
	s := &MemoryStore{}
	if initial == nil {
		initial = pm25.Table{}
	}
	s.current.Store(&initial)
	return s
}

// Snapshot returns the published table. Callers must not modify it.
func (s *MemoryStore) Snapshot() pm25.Table {
	return *s.current.Load()
}

// Mutate applies fn to the published table and publishes the result.
func (s *MemoryStore) Mutate(fn func(pm25.Table) (pm25.Table, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := fn(*s.current.Load())
	if err != nil {
		return err
	}
	if next == nil {
		next = pm25.Table{}
	}
	s.current.Store(&next)
	return nil
}
