package usage

import (
	"context"
	"fmt"
	"sync"

	"github.com/goodtune/tabtime/internal/metrics"
	"github.com/goodtune/tabtime/internal/storage"
	"github.com/rs/zerolog"
)

// StoreError is returned when the usage store rejects a read or write.
type StoreError struct {
	Op     string
	Domain string
	Err    error
}

func (e *StoreError) Error() string {
	if e.Domain != "" {
		return fmt.Sprintf("usage store %s %s: %v", e.Op, e.Domain, e.Err)
	}
	return fmt.Sprintf("usage store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Ledger serializes every mutation of the usage record. Increments and resets
// are applied one at a time, so a read-modify-write never interleaves with
// another one.
type Ledger struct {
	store  storage.UsageStore
	mu     sync.Mutex
	logger zerolog.Logger
}

// NewLedger wraps a usage store.
func NewLedger(store storage.UsageStore, logger zerolog.Logger) *Ledger {
	return &Ledger{
		store:  store,
		logger: logger.With().Str("component", "usage-ledger").Logger(),
	}
}

// AddSeconds adds seconds to domain. Empty domains and non-positive amounts
// never touch the store.
func (l *Ledger) AddSeconds(ctx context.Context, domain string, seconds int64) error {
	if domain == "" || seconds <= 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if inc, ok := l.store.(storage.Incrementer); ok {
		if err := inc.AddSeconds(ctx, domain, seconds); err != nil {
			return l.fail("add", domain, err)
		}
		return nil
	}

	usage, err := l.store.Get(ctx)
	if err != nil {
		return l.fail("get", domain, err)
	}
	if usage == nil {
		usage = storage.Usage{}
	}
	usage.Add(domain, seconds)

	if err := l.store.Set(ctx, usage); err != nil {
		return l.fail("set", domain, err)
	}
	return nil
}

// Reset overwrites the usage record with an empty mapping.
func (l *Ledger) Reset(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.store.Set(ctx, storage.Usage{}); err != nil {
		return l.fail("reset", "", err)
	}

	l.logger.Info().Msg("Usage record reset")
	return nil
}

// Usage returns a snapshot of the usage record.
func (l *Ledger) Usage(ctx context.Context) (storage.Usage, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	usage, err := l.store.Get(ctx)
	if err != nil {
		return nil, l.fail("get", "", err)
	}
	if usage == nil {
		usage = storage.Usage{}
	}
	return usage, nil
}

func (l *Ledger) fail(op, domain string, err error) error {
	metrics.StoreErrors.WithLabelValues(op).Inc()
	return &StoreError{Op: op, Domain: domain, Err: err}
}
