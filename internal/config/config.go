// Pagemark - Social Reading Platform
// Copyright 2026 Pagemark Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pagemark/pagemark

// Package config loads the server configuration with layered sources:
// built-in defaults, an optional YAML file, then PAGEMARK_-prefixed
// environment variables, each layer overriding the previous one.
package config

import (
	"fmt"
	"time"

	"github.com/pagemark/pagemark/internal/events"
	"github.com/pagemark/pagemark/internal/preferences"
	"github.com/pagemark/pagemark/internal/recommend"
	"github.com/pagemark/pagemark/internal/tasks"
)

// Config is the full server configuration.
type Config struct {
	Server      ServerConfig       `koanf:"server"`
	Logging     LoggingConfig      `koanf:"logging"`
	Storage     StorageConfig      `koanf:"storage"`
	Cache       CacheConfig        `koanf:"cache"`
	Recommend   recommend.Config   `koanf:"recommend"`
	Preferences preferences.Config `koanf:"preferences"`
	Events      EventsConfig       `koanf:"events"`
	Tasks       tasks.Config       `koanf:"tasks"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`

	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// RateLimitReqs caps requests per client IP per RateLimitWindow.
	// Zero disables rate limiting.
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`

	CORSOrigins []string `koanf:"cors_origins"`
}

// Addr returns the host:port listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	// Level is one of trace, debug, info, warn, error.
	Level string `koanf:"level"`

	// Format is "json" or "console".
	Format string `koanf:"format"`

	// Caller adds the caller file:line to every entry.
	Caller bool `koanf:"caller"`
}

// StorageConfig holds document store settings.
type StorageConfig struct {
	// Dir is the BadgerDB data directory. Empty runs in-memory.
	Dir string `koanf:"dir"`

	GCInterval     time.Duration `koanf:"gc_interval"`
	GCDiscardRatio float64       `koanf:"gc_discard_ratio"`
}

// CacheConfig holds recommendation cache settings.
type CacheConfig struct {
	// TTL is the cached list lifetime.
	TTL time.Duration `koanf:"ttl"`
}

// EventsConfig groups ingestion and bus consumer settings.
type EventsConfig struct {
	Tracker events.TrackerConfig `koanf:"tracker"`
	Router  events.RouterConfig  `koanf:"router"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8470,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Storage: StorageConfig{
			Dir:            "/data/pagemark",
			GCInterval:     10 * time.Minute,
			GCDiscardRatio: 0.5,
		},
		Cache: CacheConfig{
			TTL: time.Hour,
		},
		Recommend:   *recommend.DefaultConfig(),
		Preferences: preferences.DefaultConfig(),
		Events: EventsConfig{
			Tracker: events.DefaultTrackerConfig(),
			Router:  events.DefaultRouterConfig(),
		},
		Tasks: tasks.DefaultConfig(),
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server port %d out of range", c.Server.Port)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("config: cache ttl must be positive, got %v", c.Cache.TTL)
	}
	if err := c.Recommend.Validate(); err != nil {
		return fmt.Errorf("config: recommend: %w", err)
	}
	return nil
}
