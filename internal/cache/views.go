// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// views.go buffers topic view counts in Valkey. Counting a view is a single
// INCR; the buffered counts are periodically drained into topics.view_count
// so that reading a topic never writes to PostgreSQL.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

const (
	// viewKeyPrefix and viewKeySuffix wrap a topic id: t:<id>:v.
	viewKeyPrefix = "t:"
	viewKeySuffix = ":v"
)

// ViewCounter buffers topic view counts in Valkey.
type ViewCounter struct {
	client *redis.Client
}

// NewViewCounter creates a view counter backed by the given Valkey client.
func NewViewCounter(client *redis.Client) *ViewCounter {
	return &ViewCounter{client: client}
}

// ViewKey returns the Valkey key holding a topic's buffered views.
func ViewKey(topicID int64) string {
	return viewKeyPrefix + strconv.FormatInt(topicID, 10) + viewKeySuffix
}

// parseViewKey extracts the topic id from a view key.
func parseViewKey(key string) (int64, bool) {
	if !strings.HasPrefix(key, viewKeyPrefix) || !strings.HasSuffix(key, viewKeySuffix) {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimSuffix(strings.TrimPrefix(key, viewKeyPrefix), viewKeySuffix), 10, 64)
	return id, err == nil
}

// Increment records one view of a topic.
func (vc *ViewCounter) Increment(ctx context.Context, topicID int64) error {
	if err := vc.client.Incr(ctx, ViewKey(topicID)).Err(); err != nil {
		return fmt.Errorf("increment views: %w", err)
	}
	return nil
}

// Pending returns the buffered, not yet flushed, views of each topic, in
// the order given.
func (vc *ViewCounter) Pending(ctx context.Context, topicIDs []int64) ([]int, error) {
	if len(topicIDs) == 0 {
		return nil, nil
	}
	keys := make([]string, len(topicIDs))
	for i, id := range topicIDs {
		keys[i] = ViewKey(id)
	}
	vals, err := vc.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("pending views: %w", err)
	}
	counts := make([]int, len(vals))
	for i, v := range vals {
		if s, ok := v.(string); ok {
			counts[i], _ = strconv.Atoi(s)
		}
	}
	return counts, nil
}

// Drain removes every buffered count and returns them keyed by topic id.
// Each key is read and deleted atomically, so views recorded while draining
// are kept for the next drain.
func (vc *ViewCounter) Drain(ctx context.Context) (map[int64]int, error) {
	counts := make(map[int64]int)
	var cursor uint64
	for {
		keys, next, err := vc.client.Scan(ctx, cursor, viewKeyPrefix+"*"+viewKeySuffix, 100).Result()
		if err != nil {
			return counts, fmt.Errorf("scan views: %w", err)
		}
		for _, key := range keys {
			id, ok := parseViewKey(key)
			if !ok {
				continue
			}
			n, err := vc.client.GetDel(ctx, key).Int()
			if err == redis.Nil {
				continue
			}
			if err != nil {
				return counts, fmt.Errorf("drain views: %w", err)
			}
			counts[id] += n
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	if len(counts) > 0 {
		slog.Debug("view counts drained", "topics", len(counts))
	}
	return counts, nil
}

// Restore puts drained counts back, used when writing them to the
// database failed.
func (vc *ViewCounter) Restore(ctx context.Context, counts map[int64]int) error {
	if len(counts) == 0 {
		return nil
	}
	pipe := vc.client.Pipeline()
	for id, n := range counts {
		pipe.IncrBy(ctx, ViewKey(id), int64(n))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("restore views: %w", err)
	}
	return nil
}
