// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package config

import (
	"database/sql"
	"strings"
	"testing"
	"time"
)

var envVars = []string{
	"APP_HOST", "APP_PORT", "APP_ENV",
	"POSTGRES_HOST", "POSTGRES_PORT", "POSTGRES_USER", "POSTGRES_PASSWORD", "POSTGRES_DB",
	"VALKEY_HOST", "VALKEY_PORT", "VALKEY_PASSWORD",
	"FORUM_USE_VALKEY", "FORUM_PROFILE_COUNT_META", "FORUM_VERIFY_INVARIANTS",
	"FORUM_TX_ISOLATION", "FORUM_TX_RETRIES", "FORUM_VIEW_FLUSH_INTERVAL", "FORUM_MEDIA_URL",
}

// clearEnv sets every variable Load reads to "", which envOrDefault treats
// the same as unset. t.Setenv restores the old values afterwards.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envVars {
		t.Setenv(key, "")
	}
}

// TestLoad_Defaults verifies that Load returns sensible development defaults
// when no environment variables are set.
func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}

	defaults := map[string]string{
		"Host":        cfg.Host,
		"Port":        cfg.Port,
		"Env":         cfg.Env,
		"DBHost":      cfg.DBHost,
		"DBPort":      cfg.DBPort,
		"DBUser":      cfg.DBUser,
		"DBPassword":  cfg.DBPassword,
		"DBName":      cfg.DBName,
		"ValkeyHost":  cfg.ValkeyHost,
		"ValkeyPort":  cfg.ValkeyPort,
		"TxIsolation": cfg.TxIsolation,
		"MediaURL":    cfg.MediaURL,
	}
	want := map[string]string{
		"Host":        "0.0.0.0",
		"Port":        "8080",
		"Env":         "development",
		"DBHost":      "localhost",
		"DBPort":      "5432",
		"DBUser":      "forum",
		"DBPassword":  "changeme",
		"DBName":      "forum",
		"ValkeyHost":  "localhost",
		"ValkeyPort":  "6379",
		"TxIsolation": "serializable",
		"MediaURL":    "/media/",
	}
	for field, got := range defaults {
		if got != want[field] {
			t.Errorf("%s: got %q, want %q", field, got, want[field])
		}
	}

	if !cfg.UseValkey {
		t.Error("UseValkey should default to true")
	}
	if !cfg.ProfileCountsMeta {
		t.Error("ProfileCountsMeta should default to true")
	}
	if cfg.VerifyInvariants {
		t.Error("VerifyInvariants should default to false")
	}
	if cfg.TxRetries != 3 {
		t.Errorf("TxRetries: got %d, want 3", cfg.TxRetries)
	}
	if cfg.ViewFlushInterval != time.Minute {
		t.Errorf("ViewFlushInterval: got %v, want 1m", cfg.ViewFlushInterval)
	}
	if cfg.Isolation() != sql.LevelSerializable {
		t.Errorf("Isolation: got %v, want serializable", cfg.Isolation())
	}
	if !cfg.IsDev() {
		t.Error("IsDev should be true by default")
	}
}

// TestLoad_ForumPolicies verifies that the forum settings are read from the
// environment.
func TestLoad_ForumPolicies(t *testing.T) {
	clearEnv(t)
	t.Setenv("FORUM_USE_VALKEY", "false")
	t.Setenv("FORUM_PROFILE_COUNT_META", "0")
	t.Setenv("FORUM_VERIFY_INVARIANTS", "true")
	t.Setenv("FORUM_TX_ISOLATION", "Read_Committed")
	t.Setenv("FORUM_TX_RETRIES", "5")
	t.Setenv("FORUM_VIEW_FLUSH_INTERVAL", "30s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}
	if cfg.UseValkey || cfg.ProfileCountsMeta || !cfg.VerifyInvariants {
		t.Errorf("boolean policies not applied: %+v", cfg)
	}
	if cfg.Isolation() != sql.LevelReadCommitted {
		t.Errorf("Isolation: got %v, want read committed", cfg.Isolation())
	}
	if cfg.TxRetries != 5 {
		t.Errorf("TxRetries: got %d, want 5", cfg.TxRetries)
	}
	if cfg.ViewFlushInterval != 30*time.Second {
		t.Errorf("ViewFlushInterval: got %v, want 30s", cfg.ViewFlushInterval)
	}
}

// TestLoad_InvalidValues verifies that malformed settings are rejected.
func TestLoad_InvalidValues(t *testing.T) {
	tests := map[string]string{
		"FORUM_USE_VALKEY":          "maybe",
		"FORUM_TX_RETRIES":          "-1",
		"FORUM_VIEW_FLUSH_INTERVAL": "soon",
		"FORUM_TX_ISOLATION":        "snapshot",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, value)
			if _, err := Load(); err == nil || !strings.Contains(err.Error(), key) {
				t.Errorf("expected error mentioning %s, got %v", key, err)
			}
		})
	}
}

// TestLoad_ProductionRequiresPassword verifies that production mode refuses
// the default database password.
func TestLoad_ProductionRequiresPassword(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "production")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for default password in production")
	}
	if !strings.Contains(err.Error(), "POSTGRES_PASSWORD") {
		t.Errorf("error should mention POSTGRES_PASSWORD, got: %v", err)
	}

	t.Setenv("POSTGRES_PASSWORD", "s3cret")
	if _, err := Load(); err != nil {
		t.Errorf("Load() with password set: %v", err)
	}
}

// TestDSN verifies the PostgreSQL connection string format.
func TestDSN(t *testing.T) {
	cfg := &Config{DBUser: "u", DBPassword: "p", DBHost: "h", DBPort: "1", DBName: "d"}
	want := "postgres://u:p@h:1/d?sslmode=disable"
	if got := cfg.DSN(); got != want {
		t.Errorf("DSN: got %q, want %q", got, want)
	}
	cfg.Host, cfg.Port = "127.0.0.1", "9000"
	if got := cfg.Addr(); got != "127.0.0.1:9000" {
		t.Errorf("Addr: got %q", got)
	}
}
