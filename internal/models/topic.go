// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"time"
)

// Topic is a discussion thread inside a Forum.
type Topic struct {
	ID          int64     `db:"id" json:"id"`
	ForumID     int64     `db:"forum_id" json:"forum_id"`
	UserID      int64     `db:"user_id" json:"user_id"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	StartedAt   time.Time `db:"started_at" json:"started_at"`

	Pinned bool `db:"pinned" json:"pinned"`
	Locked bool `db:"locked" json:"locked"`
	Hidden bool `db:"hidden" json:"hidden"`

	// Denormalized
	PostCount     int        `db:"post_count" json:"post_count"`
	MetapostCount int        `db:"metapost_count" json:"metapost_count"`
	ViewCount     int        `db:"view_count" json:"view_count"`
	LastPostAt    *time.Time `db:"last_post_at" json:"last_post_at,omitempty"`
	LastUserID    *int64     `db:"last_user_id" json:"last_user_id,omitempty"`
	LastUsername  string     `db:"last_username" json:"last_username"`
}

// Count returns the denormalized Post count for the given channel.
func (t *Topic) Count(ch Channel) int {
	if ch.IsMeta() {
		return t.MetapostCount
	}
	return t.PostCount
}

// SetCount stores a denormalized Post count for the given channel.
func (t *Topic) SetCount(ch Channel, n int) {
	if ch.IsMeta() {
		t.MetapostCount = n
		return
	}
	t.PostCount = n
}

// ClearLastPost resets the cached last post details.
func (t *Topic) ClearLastPost() {
	t.LastPostAt, t.LastUserID = nil, nil
	t.LastUsername = ""
}
