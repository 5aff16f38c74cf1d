// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"time"
)

// Section groups Forums on the index page. Order is dense (1..N) across
// all Sections.
type Section struct {
	ID    int64  `db:"id" json:"id"`
	Name  string `db:"name" json:"name"`
	Order int    `db:"sort_order" json:"order"`
}

// Forum holds Topics. Order is dense (1..N) within its Section.
type Forum struct {
	ID          int64  `db:"id" json:"id"`
	SectionID   int64  `db:"section_id" json:"section_id"`
	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description"`
	Order       int    `db:"sort_order" json:"order"`
	Locked      bool   `db:"locked" json:"locked"`
	Hidden      bool   `db:"hidden" json:"hidden"`

	// Denormalized. The last post fields describe the most recent regular
	// Post in a non-hidden Topic, or are all empty.
	TopicCount     int        `db:"topic_count" json:"topic_count"`
	LastPostAt     *time.Time `db:"last_post_at" json:"last_post_at,omitempty"`
	LastTopicID    *int64     `db:"last_topic_id" json:"last_topic_id,omitempty"`
	LastTopicTitle string     `db:"last_topic_title" json:"last_topic_title"`
	LastUserID     *int64     `db:"last_user_id" json:"last_user_id,omitempty"`
	LastUsername   string     `db:"last_username" json:"last_username"`
}

// ClearLastPost resets the cached last post details.
func (f *Forum) ClearLastPost() {
	f.LastPostAt, f.LastTopicID, f.LastUserID = nil, nil, nil
	f.LastTopicTitle, f.LastUsername = "", ""
}
