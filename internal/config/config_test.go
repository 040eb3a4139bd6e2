package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_DefaultsWhenFileMissing(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TABTIME_STORAGE_PATH", filepath.Join(dir, "db", "usage.bolt"))

	cfg, err := Load(filepath.Join(dir, "missing.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 7420 {
		t.Errorf("Expected default port 7420, got %d", cfg.Server.Port)
	}
	if cfg.Storage.Type != "bolt" {
		t.Errorf("Expected bolt storage, got %s", cfg.Storage.Type)
	}
	if cfg.Tracking.FlushInterval != "15s" || cfg.Tracking.FlushThreshold != "15s" {
		t.Errorf("Unexpected flush defaults: %+v", cfg.Tracking)
	}
	if cfg.Monitor.IdleThreshold != "2m" || cfg.Monitor.PollInterval != "5s" {
		t.Errorf("Unexpected monitor defaults: %+v", cfg.Monitor)
	}
	if len(cfg.Server.AllowedOrigins) != 2 || cfg.Server.AllowedOrigins[0] != "chrome-extension://*" {
		t.Errorf("Expected extension origins allowed by default, got %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Coach.Endpoint != "" || cfg.Coach.Timeout != "30s" {
		t.Errorf("Unexpected coach defaults: %+v", cfg.Coach)
	}
	if _, err := os.Stat(filepath.Join(dir, "db")); err != nil {
		t.Errorf("Expected storage directory to be created: %v", err)
	}
}

func TestLoad_FileAndEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 8123
storage:
  type: redis
  redis:
    host: redis.internal
tracking:
  flush_threshold: 30s
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("TABTIME_LOGGING_LEVEL", "debug")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 8123 {
		t.Errorf("Expected port 8123, got %d", cfg.Server.Port)
	}
	if cfg.Storage.Type != "redis" || cfg.Storage.Redis.Host != "redis.internal" {
		t.Errorf("Unexpected storage config: %+v", cfg.Storage)
	}
	if cfg.Tracking.FlushThreshold != "30s" {
		t.Errorf("Expected flush_threshold 30s, got %s", cfg.Tracking.FlushThreshold)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected logging level from env, got %s", cfg.Logging.Level)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad port", map[string]string{"TABTIME_SERVER_PORT": "70000"}},
		{"bad storage type", map[string]string{"TABTIME_STORAGE_TYPE": "sqlite"}},
		{"bad duration", map[string]string{"TABTIME_TRACKING_FLUSH_INTERVAL": "often"}},
		{"zero duration", map[string]string{"TABTIME_MONITOR_POLL_INTERVAL": "0s"}},
		{"bad reset time", map[string]string{"TABTIME_TRACKING_DAILY_RESET_TIME": "25:99"}},
		{"bad coach endpoint", map[string]string{"TABTIME_COACH_ENDPOINT": "localhost:5000"}},
		{"bad coach timeout", map[string]string{"TABTIME_COACH_TIMEOUT": "soon"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			t.Setenv("TABTIME_STORAGE_PATH", filepath.Join(dir, "usage.bolt"))
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
				t.Fatal("Expected validation error")
			}
		})
	}
}

func TestParseDuration(t *testing.T) {
	if got := ParseDuration("90s", time.Second); got != 90*time.Second {
		t.Errorf("Expected 90s, got %s", got)
	}
	if got := ParseDuration("", 15*time.Second); got != 15*time.Second {
		t.Errorf("Expected fallback, got %s", got)
	}
}
