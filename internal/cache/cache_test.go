// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// testValkeyClient returns a Redis client for tests.
// Skips if Valkey is unavailable.
func testValkeyClient(t *testing.T) *redis.Client {
	t.Helper()

	host := envOr("VALKEY_HOST", "localhost")
	port := envOr("VALKEY_PORT", "6379")
	password := os.Getenv("VALKEY_PASSWORD")

	client := redis.NewClient(&redis.Options{
		Addr:     host + ":" + port,
		Password: password,
		DB:       15, // Use DB 15 for tests.
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("skipping integration test: Valkey not reachable: %v", err)
	}

	cleanup := func() {
		for _, pattern := range []string{"t:*", "u:*"} {
			keys, _ := client.Keys(ctx, pattern).Result()
			if len(keys) > 0 {
				client.Del(ctx, keys...)
			}
		}
	}
	cleanup()
	t.Cleanup(func() {
		cleanup()
		client.Close()
	})

	return client
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func TestConnectValkey(t *testing.T) {
	host := envOr("VALKEY_HOST", "localhost")
	port := envOr("VALKEY_PORT", "6379")

	client, err := ConnectValkey(host, port, "")
	if err != nil {
		t.Skipf("skipping: Valkey not available: %v", err)
	}
	defer client.Close()

	// Verify connection.
	ctx := context.Background()
	pong, err := client.Ping(ctx).Result()
	if err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if pong != "PONG" {
		t.Errorf("expected PONG, got %q", pong)
	}
}

func TestKeys(t *testing.T) {
	if got := ViewKey(42); got != "t:42:v" {
		t.Errorf("ViewKey: got %q", got)
	}
	if got := TrackerKey(7, 42); got != "u:7:t:42" {
		t.Errorf("TrackerKey: got %q", got)
	}

	tests := []struct {
		key  string
		id   int64
		want bool
	}{
		{"t:42:v", 42, true},
		{"t:abc:v", 0, false},
		{"u:1:t:2", 0, false},
		{"t:42", 0, false},
	}
	for _, tt := range tests {
		id, ok := parseViewKey(tt.key)
		if ok != tt.want || id != tt.id {
			t.Errorf("parseViewKey(%q) = %d, %v; want %d, %v", tt.key, id, ok, tt.id, tt.want)
		}
	}
}

func TestViewCounterIncrementAndDrain(t *testing.T) {
	client := testValkeyClient(t)
	vc := NewViewCounter(client)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := vc.Increment(ctx, 1); err != nil {
			t.Fatalf("Increment: %v", err)
		}
	}
	if err := vc.Increment(ctx, 2); err != nil {
		t.Fatalf("Increment: %v", err)
	}

	pending, err := vc.Pending(ctx, []int64{1, 2, 3})
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(pending) != 3 || pending[0] != 3 || pending[1] != 1 || pending[2] != 0 {
		t.Errorf("Pending: got %v, want [3 1 0]", pending)
	}

	counts, err := vc.Drain(ctx)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if counts[1] != 3 || counts[2] != 1 || len(counts) != 2 {
		t.Errorf("Drain: got %v", counts)
	}

	// A second drain finds nothing.
	counts, err = vc.Drain(ctx)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if len(counts) != 0 {
		t.Errorf("second Drain: got %v, want empty", counts)
	}
}

func TestViewCounterRestore(t *testing.T) {
	client := testValkeyClient(t)
	vc := NewViewCounter(client)
	ctx := context.Background()

	if err := vc.Increment(ctx, 5); err != nil {
		t.Fatalf("Increment: %v", err)
	}
	if err := vc.Restore(ctx, map[int64]int{5: 10, 6: 2}); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	counts, err := vc.Drain(ctx)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if counts[5] != 11 || counts[6] != 2 {
		t.Errorf("Drain after Restore: got %v", counts)
	}
}

func TestReadTracker(t *testing.T) {
	client := testValkeyClient(t)
	rt := NewReadTracker(client, 0)
	ctx := context.Background()

	if rt.ttl != DefaultReadTTL {
		t.Errorf("default ttl: got %v", rt.ttl)
	}

	got, err := rt.LastRead(ctx, 1, 10)
	if err != nil {
		t.Fatalf("LastRead: %v", err)
	}
	if got != nil {
		t.Errorf("LastRead before marking: got %v, want nil", got)
	}

	at := time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)
	if err := rt.MarkRead(ctx, 1, 10, at); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}

	got, err = rt.LastRead(ctx, 1, 10)
	if err != nil {
		t.Fatalf("LastRead: %v", err)
	}
	if got == nil || !got.Equal(at) {
		t.Errorf("LastRead: got %v, want %v", got, at)
	}

	ttl, err := client.TTL(ctx, TrackerKey(1, 10)).Result()
	if err != nil {
		t.Fatalf("TTL: %v", err)
	}
	if ttl <= 13*24*time.Hour || ttl > DefaultReadTTL {
		t.Errorf("TTL: got %v, want about 14 days", ttl)
	}

	all, err := rt.LastReads(ctx, 1, []int64{10, 11})
	if err != nil {
		t.Fatalf("LastReads: %v", err)
	}
	if len(all) != 2 || all[0] == nil || !all[0].Equal(at) || all[1] != nil {
		t.Errorf("LastReads: got %v", all)
	}
}
