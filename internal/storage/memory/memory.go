// Package memory provides a process-local usage store for tests and for
// running without persistence.
package memory

import (
	"context"
	"sync"

	"github.com/goodtune/tabtime/internal/storage"
)

// Store implements storage.Store in memory.
type Store struct {
	usage *usageStore
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{usage: &usageStore{record: storage.Usage{}}}
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

// Usage returns the usage store.
func (s *Store) Usage() storage.UsageStore { return s.usage }

type usageStore struct {
	mu     sync.Mutex
	record storage.Usage
}

func (s *usageStore) Get(ctx context.Context) (storage.Usage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record.Clone(), nil
}

func (s *usageStore) Set(ctx context.Context, usage storage.Usage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record = usage.Clone()
	return nil
}
