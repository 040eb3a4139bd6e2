package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// setupTestRedis creates a miniredis instance for testing Lua scripts
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	return client, mr
}

func TestAddSecondsScript(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer client.Close()

	ctx := context.Background()
	keys := []string{usageKey, usageMetaKey}

	tests := []struct {
		name      string
		domain    string
		seconds   int64
		wantTotal string
	}{
		{name: "create field", domain: "github.com", seconds: 10, wantTotal: "10"},
		{name: "increment field", domain: "github.com", seconds: 5, wantTotal: "15"},
		{name: "second domain", domain: "youtube.com", seconds: 1, wantTotal: "1"},
		{name: "zero leaves total", domain: "github.com", seconds: 0, wantTotal: "15"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := client.Eval(ctx, addSecondsScript, keys, tt.domain, tt.seconds, "2024-01-15T10:00:00Z").Err()
			if err != nil && err != redis.Nil {
				t.Fatalf("Script execution failed: %v", err)
			}

			if got := mr.HGet(usageKey, tt.domain); got != tt.wantTotal {
				t.Errorf("Expected %s=%s, got %q", tt.domain, tt.wantTotal, got)
			}
		})
	}
}

func TestReplaceUsageScript(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer client.Close()

	ctx := context.Background()
	keys := []string{usageKey, usageMetaKey}

	mr.HSet(usageKey, "stale.com", "99")

	n, err := client.Eval(ctx, replaceUsageScript, keys, "2024-01-15T10:00:00Z", "github.com", 7, "youtube.com", 3).Int()
	if err != nil {
		t.Fatalf("Script execution failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 fields, got %d", n)
	}
	if mr.HGet(usageKey, "stale.com") != "" {
		t.Error("Expected stale field to be removed")
	}
	if mr.HGet(usageKey, "github.com") != "7" {
		t.Errorf("Expected github.com=7, got %q", mr.HGet(usageKey, "github.com"))
	}
	if mr.HGet(usageMetaKey, "updated_at") != "2024-01-15T10:00:00Z" {
		t.Error("Expected updated_at to be recorded")
	}

	// An empty replacement clears the record
	n, err = client.Eval(ctx, replaceUsageScript, keys, "2024-01-16T10:00:00Z").Int()
	if err != nil {
		t.Fatalf("Script execution failed: %v", err)
	}
	if n != 0 || mr.Exists(usageKey) {
		t.Errorf("Expected usage to be cleared, got %d fields", n)
	}
}
