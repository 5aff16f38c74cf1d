// Package config handles application configuration loading from environment
// variables. It provides a centralized Config struct used across the application.
package config

import (
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"forumcore/internal/database"
)

// Config holds all application configuration values loaded from the environment.
type Config struct {
	// Server settings
	Host string
	Port string
	Env  string // "development", "production", "testing"

	// PostgreSQL connection
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Valkey (Redis-compatible cache)
	ValkeyHost     string
	ValkeyPort     string
	ValkeyPassword string
	UseValkey      bool // view counters and read trackers live in Valkey

	// Forum policies
	ProfileCountsMeta bool          // metaposts count towards profile post counts
	VerifyInvariants  bool          // re-check positions after moderation
	TxIsolation       string        // "serializable", "repeatable_read", "read_committed"
	TxRetries         int           // retries of a mutation after a serialization failure
	ViewFlushInterval time.Duration // how often buffered views are written to topics
	MediaURL          string        // base URL of emoticon images
}

// Load reads configuration from environment variables, applying defaults
// for development where appropriate. Returns an error if critical values
// are missing in production mode or a value cannot be parsed.
func Load() (*Config, error) {
	cfg := &Config{
		Host: envOrDefault("APP_HOST", "0.0.0.0"),
		Port: envOrDefault("APP_PORT", "8080"),
		Env:  envOrDefault("APP_ENV", "development"),

		DBHost:     envOrDefault("POSTGRES_HOST", "localhost"),
		DBPort:     envOrDefault("POSTGRES_PORT", "5432"),
		DBUser:     envOrDefault("POSTGRES_USER", "forum"),
		DBPassword: envOrDefault("POSTGRES_PASSWORD", "changeme"),
		DBName:     envOrDefault("POSTGRES_DB", "forum"),

		ValkeyHost:     envOrDefault("VALKEY_HOST", "localhost"),
		ValkeyPort:     envOrDefault("VALKEY_PORT", "6379"),
		ValkeyPassword: os.Getenv("VALKEY_PASSWORD"),

		TxIsolation: strings.ToLower(envOrDefault("FORUM_TX_ISOLATION", "serializable")),
		MediaURL:    envOrDefault("FORUM_MEDIA_URL", "/media/"),
	}

	var err error
	if cfg.UseValkey, err = envBool("FORUM_USE_VALKEY", true); err != nil {
		return nil, err
	}
	if cfg.ProfileCountsMeta, err = envBool("FORUM_PROFILE_COUNT_META", true); err != nil {
		return nil, err
	}
	if cfg.VerifyInvariants, err = envBool("FORUM_VERIFY_INVARIANTS", false); err != nil {
		return nil, err
	}
	if cfg.TxRetries, err = strconv.Atoi(envOrDefault("FORUM_TX_RETRIES", "3")); err != nil || cfg.TxRetries < 0 {
		return nil, fmt.Errorf("FORUM_TX_RETRIES must be a non-negative integer")
	}
	if cfg.ViewFlushInterval, err = time.ParseDuration(envOrDefault("FORUM_VIEW_FLUSH_INTERVAL", "1m")); err != nil || cfg.ViewFlushInterval <= 0 {
		return nil, fmt.Errorf("FORUM_VIEW_FLUSH_INTERVAL must be a positive duration")
	}

	switch cfg.TxIsolation {
	case "serializable", "repeatable_read", "read_committed":
	default:
		return nil, fmt.Errorf("FORUM_TX_ISOLATION must be serializable, repeatable_read or read_committed")
	}

	if cfg.Env == "production" {
		if cfg.DBPassword == "changeme" {
			return nil, fmt.Errorf("POSTGRES_PASSWORD must be set in production")
		}
	}

	return cfg, nil
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName,
	)
}

// Addr returns the server listen address (host:port).
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// IsDev returns true if the application is running in development mode.
func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Isolation returns the isolation level forum mutations run at.
func (c *Config) Isolation() sql.IsolationLevel {
	return database.ParseIsolation(c.TxIsolation)
}

// envOrDefault reads an environment variable, returning a fallback if unset or empty.
func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envBool reads a boolean environment variable such as "true", "1" or "false".
func envBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean: %w", key, err)
	}
	return b, nil
}
