// Package config provides configuration management with hot-reload support.
// It uses fsnotify to watch for file changes and atomic pointer swaps for
// zero-downtime updates.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete gate configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Cache     CacheConfig     `yaml:"cache"`
	Guest     GuestConfig     `yaml:"guest"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port              int           `yaml:"port"`
	ReadTimeout       time.Duration `yaml:"read_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	IdleTimeout       time.Duration `yaml:"idle_timeout"`
	TrustedProxyCIDRs []string      `yaml:"trusted_proxy_cidrs"`
}

// StorageConfig selects and configures the shared persistent store.
type StorageConfig struct {
	Driver   string         `yaml:"driver"` // memory, postgres, redis
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
}

// PostgresConfig contains PostgreSQL connection settings.
type PostgresConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	User         string        `yaml:"user"`
	Password     string        `yaml:"password"`
	Database     string        `yaml:"database"`
	SSLMode      string        `yaml:"ssl_mode"`
	MaxOpenConns int           `yaml:"max_open_conns"`
	MaxIdleConns int           `yaml:"max_idle_conns"`
	ConnLifetime time.Duration `yaml:"conn_lifetime"`
}

// DSN returns the lib/pq connection string.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisConfig contains Redis connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// CacheConfig contains response cache settings.
type CacheConfig struct {
	TTL          time.Duration `yaml:"ttl"`           // default 3h
	CleanupBatch int           `yaml:"cleanup_batch"` // default 100
	KeyPrefix    string        `yaml:"key_prefix"`
	Version      int           `yaml:"version"` // cache_version folded into every key
}

// GuestConfig contains guest session quota settings.
type GuestConfig struct {
	SessionTTL   time.Duration `yaml:"session_ttl"`   // default 720h (30 days)
	MessageLimit int           `yaml:"message_limit"` // default 10
}

// RateLimitConfig contains daily quota and smoothing settings.
type RateLimitConfig struct {
	FreeDailyCap int64           `yaml:"free_daily_cap"`
	ProDailyCap  int64           `yaml:"pro_daily_cap"`
	Smoothing    SmoothingConfig `yaml:"smoothing"`
}

// SmoothingConfig contains in-process burst smoothing settings.
type SmoothingConfig struct {
	Enabled bool `yaml:"enabled"`
	RPM     int  `yaml:"requests_per_minute"`
	Burst   int  `yaml:"burst_size"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Storage: StorageConfig{
			Driver: "memory",
			Postgres: PostgresConfig{
				Host:         "localhost",
				Port:         5432,
				Database:     "deckgate",
				SSLMode:      "disable",
				MaxOpenConns: 25,
				MaxIdleConns: 5,
				ConnLifetime: 5 * time.Minute,
			},
			Redis: RedisConfig{
				Addr: "localhost:6379",
			},
		},
		Cache: CacheConfig{
			TTL:          3 * time.Hour,
			CleanupBatch: 100,
			KeyPrefix:    "deckgate",
			Version:      1,
		},
		Guest: GuestConfig{
			SessionTTL:   30 * 24 * time.Hour,
			MessageLimit: 10,
		},
		RateLimit: RateLimitConfig{
			FreeDailyCap: 25,
			ProDailyCap:  300,
			Smoothing: SmoothingConfig{
				Enabled: true,
				RPM:     60,
				Burst:   10,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// LoadFromFile reads and parses a YAML configuration file.
// Environment variables in the format ${VAR_NAME} are expanded.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	switch c.Storage.Driver {
	case "memory", "postgres", "redis":
	default:
		return fmt.Errorf("unknown storage driver: %q", c.Storage.Driver)
	}

	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl cannot be negative")
	}
	if c.Cache.CleanupBatch < 0 {
		return fmt.Errorf("cache.cleanup_batch cannot be negative")
	}
	if c.Cache.Version <= 0 {
		return fmt.Errorf("cache.version must be positive")
	}

	if c.Guest.SessionTTL < 0 {
		return fmt.Errorf("guest.session_ttl cannot be negative")
	}
	if c.Guest.MessageLimit <= 0 {
		return fmt.Errorf("guest.message_limit must be positive")
	}

	if c.RateLimit.FreeDailyCap <= 0 {
		return fmt.Errorf("rate_limit.free_daily_cap must be positive")
	}
	if c.RateLimit.ProDailyCap <= 0 {
		return fmt.Errorf("rate_limit.pro_daily_cap must be positive")
	}

	return nil
}
