// Trophytrack - PlayStation Trophy Records and Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trophytrack

// Package config loads and validates application configuration.
//
// Configuration is resolved in three layers, each overriding the previous:
//
//  1. Built-in defaults (DefaultConfig)
//  2. An optional YAML file (first match of DefaultConfigPaths, or the
//     path named by the TROPHYTRACK_CONFIG environment variable)
//  3. Environment variables prefixed TROPHYTRACK_, with underscores
//     mapping to nesting (TROPHYTRACK_SERVER_PORT -> server.port)
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are checked in order when no explicit path is given.
var DefaultConfigPaths = []string{
	"trophytrack.yaml",
	"config/trophytrack.yaml",
	"/etc/trophytrack/trophytrack.yaml",
}

const envPrefix = "TROPHYTRACK_"

// Config is the root configuration for the application.
type Config struct {
	Logging   LoggingConfig   `koanf:"logging"`
	Server    ServerConfig    `koanf:"server"`
	PSN       PSNConfig       `koanf:"psn"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	Identity  IdentityConfig  `koanf:"identity"`
	Sync      SyncConfig      `koanf:"sync"`
	Database  DatabaseConfig  `koanf:"database"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `koanf:"level"`  // trace, debug, info, warn, error
	Format string `koanf:"format"` // json or console
	Caller bool   `koanf:"caller"`
}

// ServerConfig controls the HTTP API server.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	// RequestsPerMinute is the global per-IP request throttle.
	RequestsPerMinute int `koanf:"requests_per_minute"`
	// SyncStartPerMinute limits how often a single client may start sync jobs.
	SyncStartPerMinute int      `koanf:"sync_start_per_minute"`
	CORSOrigins        []string `koanf:"cors_origins"`
}

// PSNConfig controls the upstream trophy service client.
type PSNConfig struct {
	BaseURL        string        `koanf:"base_url"`
	Timeout        time.Duration `koanf:"timeout"`
	MaxRetries     int           `koanf:"max_retries"`
	RetryBaseDelay time.Duration `koanf:"retry_base_delay"`
	// VaultKey is the hex-encoded 256-bit key for credential encryption
	// at rest. Required when credentials are stored.
	VaultKey string `koanf:"vault_key"`
}

// RateLimitConfig controls the upstream call budget.
type RateLimitConfig struct {
	Limit  int           `koanf:"limit"`
	Window time.Duration `koanf:"window"`
}

// IdentityConfig controls the identity validation cache.
type IdentityConfig struct {
	MaxAge time.Duration `koanf:"max_age"`
}

// SyncConfig controls sync job behavior.
type SyncConfig struct {
	PageSize    int           `koanf:"page_size"`
	MaxTitles   int           `koanf:"max_titles"`
	MinInterval time.Duration `koanf:"min_interval"`
	// Scheduled enables periodic background re-sync of known users.
	Scheduled         bool          `koanf:"scheduled"`
	ScheduledInterval time.Duration `koanf:"scheduled_interval"`
}

// DatabaseConfig controls the embedded store.
type DatabaseConfig struct {
	Path string `koanf:"path"`
	// InMemory runs the store without disk persistence. Used in tests.
	InMemory bool `koanf:"in_memory"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Server: ServerConfig{
			Host:               "0.0.0.0",
			Port:               8484,
			ReadTimeout:        15 * time.Second,
			WriteTimeout:       30 * time.Second,
			ShutdownTimeout:    10 * time.Second,
			RequestsPerMinute:  120,
			SyncStartPerMinute: 4,
		},
		PSN: PSNConfig{
			BaseURL:        "https://m.np.playstation.com/api/trophy",
			Timeout:        30 * time.Second,
			MaxRetries:     3,
			RetryBaseDelay: time.Second,
		},
		RateLimit: RateLimitConfig{
			Limit:  300,
			Window: 15 * time.Minute,
		},
		Identity: IdentityConfig{
			MaxAge: 24 * time.Hour,
		},
		Sync: SyncConfig{
			PageSize:          50,
			MaxTitles:         2000,
			MinInterval:       5 * time.Minute,
			Scheduled:         false,
			ScheduledInterval: 6 * time.Hour,
		},
		Database: DatabaseConfig{
			Path: "data/trophytrack",
		},
	}
}

// Load resolves configuration from defaults, an optional YAML file, and
// environment variables. An empty path falls back to TROPHYTRACK_CONFIG
// and then DefaultConfigPaths; a missing default file is not an error,
// but an explicitly named file must exist.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(DefaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	explicit := path != ""
	if !explicit {
		path = os.Getenv(envPrefix + "CONFIG")
		explicit = path != ""
	}
	if !explicit {
		for _, p := range DefaultConfigPaths {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if explicit || !os.IsNotExist(err) {
				return nil, fmt.Errorf("loading config file %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envToKey), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envToKey maps TROPHYTRACK_RATE_LIMIT_WINDOW to rate_limit.window.
// Section names are matched longest-first so multi-word sections resolve
// before the underscore is treated as a separator.
func envToKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	if s == "config" {
		return "" // handled separately in Load
	}
	for _, section := range []string{"rate_limit", "logging", "server", "psn", "identity", "sync", "database"} {
		if strings.HasPrefix(s, section+"_") {
			return section + "." + strings.TrimPrefix(s, section+"_")
		}
	}
	return s
}

// Validate checks configuration invariants. It is called by Load but is
// exported so hand-built configs in tests can be checked the same way.
func (c *Config) Validate() error {
	switch c.Logging.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unknown level %q", c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("logging.format: must be json or console, got %q", c.Logging.Format)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port: must be 1-65535, got %d", c.Server.Port)
	}
	if c.Server.RequestsPerMinute < 1 {
		return fmt.Errorf("server.requests_per_minute: must be positive, got %d", c.Server.RequestsPerMinute)
	}
	if c.PSN.BaseURL == "" {
		return fmt.Errorf("psn.base_url: must not be empty")
	}
	if c.PSN.Timeout <= 0 {
		return fmt.Errorf("psn.timeout: must be positive, got %s", c.PSN.Timeout)
	}
	if c.PSN.MaxRetries < 0 || c.PSN.MaxRetries > 10 {
		return fmt.Errorf("psn.max_retries: must be 0-10, got %d", c.PSN.MaxRetries)
	}
	if c.RateLimit.Limit < 1 {
		return fmt.Errorf("rate_limit.limit: must be positive, got %d", c.RateLimit.Limit)
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate_limit.window: must be positive, got %s", c.RateLimit.Window)
	}
	if c.Identity.MaxAge <= 0 {
		return fmt.Errorf("identity.max_age: must be positive, got %s", c.Identity.MaxAge)
	}
	if c.Sync.PageSize < 1 || c.Sync.PageSize > 800 {
		return fmt.Errorf("sync.page_size: must be 1-800, got %d", c.Sync.PageSize)
	}
	if c.Sync.MaxTitles < c.Sync.PageSize {
		return fmt.Errorf("sync.max_titles: must be at least page_size (%d), got %d", c.Sync.PageSize, c.Sync.MaxTitles)
	}
	if c.Sync.MinInterval < 0 {
		return fmt.Errorf("sync.min_interval: must not be negative, got %s", c.Sync.MinInterval)
	}
	if c.Sync.Scheduled && c.Sync.ScheduledInterval < time.Minute {
		return fmt.Errorf("sync.scheduled_interval: must be at least 1m when scheduled sync is enabled, got %s", c.Sync.ScheduledInterval)
	}
	if !c.Database.InMemory && c.Database.Path == "" {
		return fmt.Errorf("database.path: must not be empty")
	}
	return nil
}

// Addr returns the host:port the HTTP server binds to.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
