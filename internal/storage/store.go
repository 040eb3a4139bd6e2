package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a record is missing from storage.
var ErrNotFound = errors.New("storage: record not found")

// Store represents the root storage interface.
type Store interface {
	Close() error
	Usage() UsageStore
}

// UsageStore holds the single usage record (domain -> accumulated seconds).
// A store that has never been written reads as an empty Usage.
type UsageStore interface {
	Get(ctx context.Context) (Usage, error)
	Set(ctx context.Context, usage Usage) error
}

// Incrementer is implemented by usage stores that can add seconds to a domain
// atomically on the backend, without a separate read and write.
type Incrementer interface {
	AddSeconds(ctx context.Context, domain string, seconds int64) error
}
