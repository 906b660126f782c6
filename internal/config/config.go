// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"

	"github.com/briangreenhill/campavatars/avatar"
	"github.com/briangreenhill/campavatars/cache"
)

// CountdownLayout is the format of COUNTDOWN_TARGET, read in local time
const CountdownLayout = "2006-01-02T15:04:05"

// Config holds all application configuration
type Config struct {
	Port            string `env:"PORT" envDefault:"8080"`
	LogLevel        string `env:"LOG_LEVEL" envDefault:"info"`
	RosterPath      string `env:"ROSTER_PATH" envDefault:"roster.yaml"`
	CountdownTarget string `env:"COUNTDOWN_TARGET" envDefault:"2026-02-07T12:00:00"`
	RedisAddr       string `env:"REDIS_ADDR"`
	DatabaseURL     string `env:"DATABASE_URL"`
	AllowedOrigin   string `env:"ALLOWED_ORIGIN" envDefault:"*"`

	Avatar AvatarConfig `envPrefix:"AVATAR_"`
	Store  StoreConfig  `envPrefix:"AVATAR_STORE_"`
}

// AvatarConfig holds avatar resolution settings
type AvatarConfig struct {
	Provider      string        `env:"PROVIDER" envDefault:"twitch"`
	Endpoint      string        `env:"ENDPOINT"` // registers the "custom" provider
	Namespace     string        `env:"NAMESPACE" envDefault:"sucukcamp_avatars"`
	MaxConcurrent int           `env:"MAX_CONCURRENT" envDefault:"3"`
	HTTPTimeout   time.Duration `env:"HTTP_TIMEOUT" envDefault:"0s"` // 0 means no timeout
}

// StoreConfig selects where the avatar cache blob is persisted
type StoreConfig struct {
	Backend    string `env:"BACKEND" envDefault:"file"`
	Dir        string `env:"DIR"`
	SQLitePath string `env:"SQLITE_PATH"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Validate checks values that cannot be expressed as struct tags
func (c *Config) Validate() error {
	if c.Avatar.MaxConcurrent < 1 {
		return fmt.Errorf("AVATAR_MAX_CONCURRENT must be at least 1, got %d", c.Avatar.MaxConcurrent)
	}
	if c.Avatar.HTTPTimeout < 0 {
		return fmt.Errorf("AVATAR_HTTP_TIMEOUT must not be negative, got %s", c.Avatar.HTTPTimeout)
	}
	if c.Avatar.Provider == avatar.ProviderCustom && c.Avatar.Endpoint == "" {
		return fmt.Errorf("AVATAR_PROVIDER=custom requires AVATAR_ENDPOINT")
	}
	if _, err := c.Target(); err != nil {
		return err
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %v", err)
	}

	switch strings.ToLower(c.Store.Backend) {
	case cache.BackendFile, cache.BackendMemory, cache.BackendSQLite:
	case cache.BackendRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("AVATAR_STORE_BACKEND=redis requires REDIS_ADDR")
		}
	case cache.BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("AVATAR_STORE_BACKEND=postgres requires DATABASE_URL")
		}
	default:
		return fmt.Errorf("unknown AVATAR_STORE_BACKEND %q", c.Store.Backend)
	}
	return nil
}

// Target parses COUNTDOWN_TARGET in local time
func (c *Config) Target() (time.Time, error) {
	t, err := time.ParseInLocation(CountdownLayout, c.CountdownTarget, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid COUNTDOWN_TARGET: %v", err)
	}
	return t, nil
}

// Level returns the zerolog level for LOG_LEVEL, falling back to info
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// HasRedis returns true if a Redis address is configured
func (c *Config) HasRedis() bool {
	return c.RedisAddr != ""
}

// StoreOptions maps the configuration onto cache.Open
func (c *Config) StoreOptions() cache.StoreOptions {
	return cache.StoreOptions{
		Backend:     c.Store.Backend,
		Namespace:   c.Avatar.Namespace,
		Dir:         c.Store.Dir,
		SQLitePath:  c.Store.SQLitePath,
		RedisAddr:   c.RedisAddr,
		DatabaseURL: c.DatabaseURL,
	}
}
