// Package evidence reads evidence records from files and in-memory stores.
package evidence

import (
	"context"
	"sync"

	"github.com/ZanzyTHEbar/simdev/internal/types"
)

// Source supplies the evidence records a snapshot is built from
type Source interface {
	Records(ctx context.Context) ([]types.Evidence, error)
}

// MemoryStore keeps evidence in memory
type MemoryStore struct {
	mu      sync.RWMutex
	records []types.Evidence
}

// NewMemoryStore creates a store holding a copy of records
func NewMemoryStore(records ...types.Evidence) *MemoryStore {
	s := &MemoryStore{}
	s.Add(records...)
	return s
}

// Add appends records to the store
func (s *MemoryStore) Add(records ...types.Evidence) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, records...)
}

// Len returns the number of stored records
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Records returns a copy of every stored record
func (s *MemoryStore) Records(ctx context.Context) ([]types.Evidence, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Evidence, len(s.records))
	copy(out, s.records)
	return out, nil
}

// FileSource loads evidence from a file on every call
type FileSource struct {
	Path string
}

func (f FileSource) Records(ctx context.Context) ([]types.Evidence, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Load(f.Path)
}
