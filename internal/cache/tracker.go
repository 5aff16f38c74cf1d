// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultReadTTL is how long a topic read marker is remembered.
const DefaultReadTTL = 14 * 24 * time.Hour

// ReadTracker remembers when a user last read each topic. Markers expire,
// after which the topic simply counts as unread.
type ReadTracker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewReadTracker creates a read tracker backed by the given Valkey client.
func NewReadTracker(client *redis.Client, ttl time.Duration) *ReadTracker {
	if ttl == 0 {
		ttl = DefaultReadTTL
	}
	return &ReadTracker{client: client, ttl: ttl}
}

// TrackerKey returns the Valkey key of a user's marker for a topic.
func TrackerKey(userID, topicID int64) string {
	return fmt.Sprintf("u:%d:t:%d", userID, topicID)
}

// MarkRead records that the user read the topic at the given time.
func (rt *ReadTracker) MarkRead(ctx context.Context, userID, topicID int64, at time.Time) error {
	if err := rt.client.Set(ctx, TrackerKey(userID, topicID), at.Unix(), rt.ttl).Err(); err != nil {
		return fmt.Errorf("mark topic read: %w", err)
	}
	return nil
}

// LastRead returns when the user last read the topic, or nil if unknown.
func (rt *ReadTracker) LastRead(ctx context.Context, userID, topicID int64) (*time.Time, error) {
	secs, err := rt.client.Get(ctx, TrackerKey(userID, topicID)).Int64()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last read: %w", err)
	}
	at := time.Unix(secs, 0)
	return &at, nil
}

// LastReads returns LastRead for several topics in one round trip, in the
// order given.
func (rt *ReadTracker) LastReads(ctx context.Context, userID int64, topicIDs []int64) ([]*time.Time, error) {
	if len(topicIDs) == 0 {
		return nil, nil
	}
	keys := make([]string, len(topicIDs))
	for i, id := range topicIDs {
		keys[i] = TrackerKey(userID, id)
	}
	vals, err := rt.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("last reads: %w", err)
	}
	out := make([]*time.Time, len(vals))
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
			at := time.Unix(secs, 0)
			out[i] = &at
		}
	}
	return out, nil
}
