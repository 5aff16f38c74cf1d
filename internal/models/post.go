// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"time"
)

// Channel separates the main discussion of a Topic from its metaposts
// (discussion about the discussion). Posts are numbered independently in
// each channel.
type Channel int

const (
	RegularChannel Channel = iota
	MetaChannel
)

// ChannelOf maps a Post's meta flag to its Channel.
func ChannelOf(meta bool) Channel {
	if meta {
		return MetaChannel
	}
	return RegularChannel
}

// IsMeta reports whether c is the metapost channel.
func (c Channel) IsMeta() bool {
	return c == MetaChannel
}

// Other returns the opposite channel.
func (c Channel) Other() Channel {
	if c == MetaChannel {
		return RegularChannel
	}
	return MetaChannel
}

func (c Channel) String() string {
	if c == MetaChannel {
		return "meta"
	}
	return "regular"
}

// Post is a single message in a Topic.
type Post struct {
	ID        int64      `db:"id" json:"id"`
	TopicID   int64      `db:"topic_id" json:"topic_id"`
	UserID    int64      `db:"user_id" json:"user_id"`
	Body      string     `db:"body" json:"body"`
	BodyHTML  string     `db:"body_html" json:"body_html"`
	PostedAt  time.Time  `db:"posted_at" json:"posted_at"`
	EditedAt  *time.Time `db:"edited_at" json:"edited_at,omitempty"`
	UserIP    *string    `db:"user_ip" json:"-"`
	Meta      bool       `db:"meta" json:"meta"`
	Emoticons bool       `db:"emoticons" json:"emoticons"`

	// Denormalized: 1-based position within the Post's channel.
	NumInTopic int `db:"num_in_topic" json:"num_in_topic"`

	// Virtual fields populated by store joins.
	Username    string `db:"username" json:"username"`
	TopicTitle  string `db:"topic_title" json:"topic_title"`
	TopicHidden bool   `db:"topic_hidden" json:"-"`
	ForumID     int64  `db:"forum_id" json:"forum_id"`

	// Author is attached by callers that show the poster's profile.
	Author *ForumProfile `db:"-" json:"author,omitempty"`
}

// Channel returns the channel the Post is currently numbered in.
func (p *Post) Channel() Channel {
	return ChannelOf(p.Meta)
}
