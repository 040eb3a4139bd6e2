package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the complete application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Tracking TrackingConfig `mapstructure:"tracking"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
	Browser  BrowserConfig  `mapstructure:"browser"`
	Coach    CoachConfig    `mapstructure:"coach"`
}

// ServerConfig defines listen addresses for the bridge/API and metrics
type ServerConfig struct {
	BindAddress    string   `mapstructure:"bind_address"`
	Port           int      `mapstructure:"port"`
	MetricsPort    int      `mapstructure:"metrics_port"` // 0 disables the metrics server
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// StorageConfig defines storage backend settings
type StorageConfig struct {
	Type  string      `mapstructure:"type"` // "bolt", "redis" or "memory"
	Path  string      `mapstructure:"path"` // bolt database file
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig defines Redis connection settings
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	DialTimeout  string `mapstructure:"dial_timeout"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TrackingConfig defines the flush cadence of the active-time tracker
type TrackingConfig struct {
	FlushInterval  string `mapstructure:"flush_interval"`
	FlushThreshold string `mapstructure:"flush_threshold"`
	DailyResetTime string `mapstructure:"daily_reset_time"` // HH:MM, empty disables
}

// MonitorConfig defines idle detection settings
type MonitorConfig struct {
	IdleThreshold string `mapstructure:"idle_threshold"`
	PollInterval  string `mapstructure:"poll_interval"`
}

// BrowserConfig defines the tab registry settings
type BrowserConfig struct {
	TabCacheSize int `mapstructure:"tab_cache_size"`
}

// CoachConfig defines the optional analysis backend
type CoachConfig struct {
	Endpoint string `mapstructure:"endpoint"` // empty disables coaching
	Timeout  string `mapstructure:"timeout"`
}

// DefaultAllowedOrigins admit the browser extension on the bridge and event
// endpoints.
var DefaultAllowedOrigins = []string{"chrome-extension://*", "moz-extension://*"}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("TABTIME")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil && !isNotFound(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// A missing config file leaves defaults and environment variables
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// DefaultPath returns the default location of the configuration file
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "tabtime.yaml"
	}
	return filepath.Join(dir, "tabtime", "config.yaml")
}

// defaultDataPath returns the default bolt database location
func defaultDataPath() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "tabtime", "usage.bolt")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "tabtime-usage.bolt"
	}
	return filepath.Join(home, ".local", "share", "tabtime", "usage.bolt")
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.bind_address", "127.0.0.1")
	v.SetDefault("server.port", 7420)
	v.SetDefault("server.metrics_port", 9420)
	v.SetDefault("server.allowed_origins", append([]string(nil), DefaultAllowedOrigins...))

	// Storage defaults
	v.SetDefault("storage.type", "bolt")
	v.SetDefault("storage.path", defaultDataPath())
	v.SetDefault("storage.redis.host", "127.0.0.1")
	v.SetDefault("storage.redis.port", 6379)
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.pool_size", 10)
	v.SetDefault("storage.redis.min_idle_conns", 1)
	v.SetDefault("storage.redis.dial_timeout", "5s")
	v.SetDefault("storage.redis.read_timeout", "3s")
	v.SetDefault("storage.redis.write_timeout", "3s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Tracking defaults
	v.SetDefault("tracking.flush_interval", "15s")
	v.SetDefault("tracking.flush_threshold", "15s")
	v.SetDefault("tracking.daily_reset_time", "")

	// Monitor defaults
	v.SetDefault("monitor.idle_threshold", "2m")
	v.SetDefault("monitor.poll_interval", "5s")

	// Browser defaults
	v.SetDefault("browser.tab_cache_size", 512)

	// Coach defaults
	v.SetDefault("coach.endpoint", "")
	v.SetDefault("coach.timeout", "30s")
}

// validate validates the configuration
func validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}
	if cfg.Server.MetricsPort < 0 || cfg.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", cfg.Server.MetricsPort)
	}

	for name, value := range map[string]string{
		"tracking.flush_interval":  cfg.Tracking.FlushInterval,
		"tracking.flush_threshold": cfg.Tracking.FlushThreshold,
		"monitor.idle_threshold":   cfg.Monitor.IdleThreshold,
		"monitor.poll_interval":    cfg.Monitor.PollInterval,
		"coach.timeout":            cfg.Coach.Timeout,
	} {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, value, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, value)
		}
	}

	if cfg.Tracking.DailyResetTime != "" {
		if _, err := time.Parse("15:04", cfg.Tracking.DailyResetTime); err != nil {
			return fmt.Errorf("invalid tracking.daily_reset_time %q (want HH:MM)", cfg.Tracking.DailyResetTime)
		}
	}

	if cfg.Browser.TabCacheSize <= 0 {
		return fmt.Errorf("browser.tab_cache_size must be positive, got %d", cfg.Browser.TabCacheSize)
	}

	if cfg.Coach.Endpoint != "" {
		u, err := url.Parse(cfg.Coach.Endpoint)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid coach.endpoint %q (want an http or https URL)", cfg.Coach.Endpoint)
		}
	}

	switch cfg.Storage.Type {
	case "":
		cfg.Storage.Type = "bolt"
		fallthrough
	case "bolt":
		if cfg.Storage.Path == "" {
			return fmt.Errorf("storage path is required for bolt storage")
		}
		// Ensure storage directory exists
		storageDir := filepath.Dir(cfg.Storage.Path)
		if err := os.MkdirAll(storageDir, 0755); err != nil {
			return fmt.Errorf("failed to create storage directory: %w", err)
		}
	case "redis":
		if cfg.Storage.Redis.Host == "" {
			return fmt.Errorf("storage.redis.host is required for redis storage")
		}
	case "memory":
	default:
		return fmt.Errorf("unsupported storage type: %s (use bolt, redis or memory)", cfg.Storage.Type)
	}

	return nil
}

// ParseDuration parses a duration string with a fallback
func ParseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// isNotFound reports whether err means the config file does not exist
func isNotFound(err error) bool {
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		return true
	}
	return errors.Is(err, fs.ErrNotExist)
}
