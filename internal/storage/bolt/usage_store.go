package bolt

import (
	"context"
	"fmt"
	"time"

	"github.com/goodtune/tabtime/internal/storage"
	"go.etcd.io/bbolt"
)

type usageStore struct {
	db *bbolt.DB
}

// Get reads every domain in the usage bucket.
func (s *usageStore) Get(ctx context.Context) (storage.Usage, error) {
	usage := storage.Usage{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketUsage))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var seconds int64
			if err := unmarshal(v, &seconds); err != nil {
				return fmt.Errorf("domain %s: %w", k, err)
			}
			usage[string(k)] = seconds
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return usage, nil
}

// Set replaces the whole usage record in one transaction.
func (s *usageStore) Set(ctx context.Context, usage storage.Usage) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if tx.Bucket([]byte(bucketUsage)) != nil {
			if err := tx.DeleteBucket([]byte(bucketUsage)); err != nil {
				return fmt.Errorf("clear usage bucket: %w", err)
			}
		}
		b, err := tx.CreateBucket([]byte(bucketUsage))
		if err != nil {
			return fmt.Errorf("create usage bucket: %w", err)
		}
		for domain, seconds := range usage {
			data, err := marshal(seconds)
			if err != nil {
				return err
			}
			if err := b.Put([]byte(domain), data); err != nil {
				return err
			}
		}
		return touch(tx, time.Now())
	})
}

// AddSeconds increments a single domain inside one update transaction.
func (s *usageStore) AddSeconds(ctx context.Context, domain string, seconds int64) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b := tx.Bucket([]byte(bucketUsage))
		if b == nil {
			return fmt.Errorf("usage bucket: %w", storage.ErrNotFound)
		}
		var total int64
		if existing := b.Get([]byte(domain)); existing != nil {
			if err := unmarshal(existing, &total); err != nil {
				return err
			}
		}
		total += seconds
		data, err := marshal(total)
		if err != nil {
			return err
		}
		if err := b.Put([]byte(domain), data); err != nil {
			return err
		}
		return touch(tx, time.Now())
	})
}
