package redis

import (
	"context"
	"time"

	"github.com/goodtune/tabtime/internal/storage"
	"github.com/redis/go-redis/v9"
)

var (
	addSeconds   = redis.NewScript(addSecondsScript)
	replaceUsage = redis.NewScript(replaceUsageScript)
)

type usageStore struct {
	client *redis.Client
}

// Get returns the usage hash; a missing key reads as an empty record
func (s *usageStore) Get(ctx context.Context) (storage.Usage, error) {
	data, err := s.client.HGetAll(ctx, usageKey).Result()
	if err != nil {
		return nil, err
	}
	return parseUsage(data)
}

// Set replaces the usage hash with the given record
func (s *usageStore) Set(ctx context.Context, usage storage.Usage) error {
	args := append([]interface{}{now()}, usageFields(usage)...)
	return replaceUsage.Run(ctx, s.client, []string{usageKey, usageMetaKey}, args...).Err()
}

// AddSeconds atomically increments (or creates) one domain
func (s *usageStore) AddSeconds(ctx context.Context, domain string, seconds int64) error {
	keys := []string{usageKey, usageMetaKey}
	err := addSeconds.Run(ctx, s.client, keys, domain, seconds, now()).Err()
	if err == redis.Nil {
		return nil
	}
	return err
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
