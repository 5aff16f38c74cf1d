// Package models defines the data structures that map to database tables
// and provides the core types used throughout the application.
package models

import (
	"time"
)

// Group is a forum profile's permission level.
type Group string

const (
	GroupUser      Group = "U"
	GroupModerator Group = "M"
	GroupAdmin     Group = "A"
)

// User is an account known to the forum. Authentication lives elsewhere;
// the forum only needs a stable id and a display name.
type User struct {
	ID           int64     `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"` // Never serialize the hash
	DateJoined   time.Time `db:"date_joined" json:"date_joined"`
}

// ForumProfile holds forum-specific settings for a User along with the
// denormalized count of Posts they have made.
type ForumProfile struct {
	ID            int64  `db:"id" json:"id"`
	UserID        int64  `db:"user_id" json:"user_id"`
	Group         Group  `db:"user_group" json:"group"`
	Title         string `db:"title" json:"title"`
	Location      string `db:"location" json:"location"`
	Avatar        string `db:"avatar" json:"avatar"`
	Website       string `db:"website" json:"website"`
	Timezone      string `db:"timezone" json:"timezone"`
	TopicsPerPage *int   `db:"topics_per_page" json:"topics_per_page,omitempty"`
	PostsPerPage  *int   `db:"posts_per_page" json:"posts_per_page,omitempty"`
	AutoFastReply bool   `db:"auto_fast_reply" json:"auto_fast_reply"`

	// Denormalized
	PostCount int `db:"post_count" json:"post_count"`
}

// IsModerator returns true if the profile's user has moderation privileges.
func (p *ForumProfile) IsModerator() bool {
	return p.Group == GroupModerator || p.Group == GroupAdmin
}

// IsAdmin returns true if the profile's user has administrative privileges.
func (p *ForumProfile) IsAdmin() bool {
	return p.Group == GroupAdmin
}
