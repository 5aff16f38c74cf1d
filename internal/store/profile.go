// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"forumcore/internal/models"
)

const profileColumns = `id, user_id, user_group, title, location, avatar, website, timezone,
	topics_per_page, posts_per_page, auto_fast_reply, post_count`

// ProfileStore manages forum profiles.
type ProfileStore struct {
	db DB
}

// NewProfileStore returns a new ProfileStore.
func NewProfileStore(db DB) *ProfileStore {
	return &ProfileStore{db: db}
}

// GetOrCreate returns the forum profile for a user, creating an empty one
// first if the user has never had one.
func (s *ProfileStore) GetOrCreate(ctx context.Context, userID int64) (*models.ForumProfile, error) {
	var p models.ForumProfile
	err := sqlx.GetContext(ctx, s.db, &p, `
		INSERT INTO forum_profiles (user_id)
		VALUES ($1)
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING `+profileColumns,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("get or create profile: %w", err)
	}
	return &p, nil
}

// FindByUserID retrieves a user's forum profile. Returns nil if not found.
func (s *ProfileStore) FindByUserID(ctx context.Context, userID int64) (*models.ForumProfile, error) {
	var p models.ForumProfile
	err := sqlx.GetContext(ctx, s.db, &p, `SELECT `+profileColumns+` FROM forum_profiles WHERE user_id = $1`, userID)
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find profile by user: %w", err)
	}
	return &p, nil
}

// SetGroup changes a user's permission group.
func (s *ProfileStore) SetGroup(ctx context.Context, userID int64, group models.Group) error {
	_, err := s.db.ExecContext(ctx, `UPDATE forum_profiles SET user_group = $1 WHERE user_id = $2`, group, userID)
	if err != nil {
		return fmt.Errorf("set profile group: %w", err)
	}
	return nil
}

// ProfileCache memoizes forum profiles for the duration of one operation.
// It replaces caching the profile on a shared user object: a cache lives
// only as long as the call that created it.
type ProfileCache struct {
	profiles *ProfileStore
	byUser   map[int64]*models.ForumProfile
}

// NewProfileCache returns an empty cache reading through profiles.
func NewProfileCache(profiles *ProfileStore) *ProfileCache {
	return &ProfileCache{profiles: profiles, byUser: make(map[int64]*models.ForumProfile)}
}

// Get returns the cached profile for userID, loading it on the first
// request. A user who never had a profile gets an unsaved default one, so
// reads never write.
func (c *ProfileCache) Get(ctx context.Context, userID int64) (*models.ForumProfile, error) {
	if p, ok := c.byUser[userID]; ok {
		return p, nil
	}
	p, err := c.profiles.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		p = &models.ForumProfile{UserID: userID, Group: models.GroupUser}
	}
	c.byUser[userID] = p
	return p, nil
}

// Attach sets the Author of every post, loading each distinct author's
// profile once.
func (c *ProfileCache) Attach(ctx context.Context, posts []models.Post) error {
	for i := range posts {
		p, err := c.Get(ctx, posts[i].UserID)
		if err != nil {
			return err
		}
		posts[i].Author = p
	}
	return nil
}

// SetPostCount keeps a cached profile in step with a recomputed count.
func (c *ProfileCache) SetPostCount(userID int64, n int) {
	if p, ok := c.byUser[userID]; ok {
		p.PostCount = n
	}
}

// Forget drops cached profiles, forcing the next Get to reload them.
func (c *ProfileCache) Forget(userIDs ...int64) {
	for _, id := range userIDs {
		delete(c.byUser, id)
	}
}
