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

const topicColumns = `id, forum_id, user_id, title, description, started_at, pinned, locked, hidden,
	post_count, metapost_count, view_count, last_post_at, last_user_id, last_username`

// TopicStore manages topics in the database.
type TopicStore struct {
	db DB
}

// NewTopicStore returns a new TopicStore.
func NewTopicStore(db DB) *TopicStore {
	return &TopicStore{db: db}
}

// ListByForum returns a forum's topics with pinned topics first, then by
// most recent activity. Hidden topics are only included when asked for.
func (s *TopicStore) ListByForum(ctx context.Context, forumID int64, includeHidden bool) ([]models.Topic, error) {
	var items []models.Topic
	err := sqlx.SelectContext(ctx, s.db, &items, `
		SELECT `+topicColumns+`
		FROM topics
		WHERE forum_id = $1 AND ($2 OR hidden = FALSE)
		ORDER BY pinned DESC, last_post_at DESC NULLS LAST, started_at DESC, id DESC
	`, forumID, includeHidden)
	if err != nil {
		return nil, fmt.Errorf("list topics by forum: %w", err)
	}
	return items, nil
}

// IDs returns the ID of every topic.
func (s *TopicStore) IDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	if err := sqlx.SelectContext(ctx, s.db, &ids, `SELECT id FROM topics ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list topic ids: %w", err)
	}
	return ids, nil
}

// FindByID retrieves a topic by ID. Returns nil if not found.
func (s *TopicStore) FindByID(ctx context.Context, id int64) (*models.Topic, error) {
	var t models.Topic
	err := sqlx.GetContext(ctx, s.db, &t, `SELECT `+topicColumns+` FROM topics WHERE id = $1`, id)
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find topic by id: %w", err)
	}
	return &t, nil
}

// LockByID retrieves a topic by ID and locks its row until the end of the
// transaction. Returns nil if not found.
func (s *TopicStore) LockByID(ctx context.Context, id int64) (*models.Topic, error) {
	var t models.Topic
	err := sqlx.GetContext(ctx, s.db, &t, `SELECT `+topicColumns+` FROM topics WHERE id = $1 FOR UPDATE`, id)
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lock topic: %w", err)
	}
	return &t, nil
}

// Create inserts a new topic and returns it with the generated ID.
func (s *TopicStore) Create(ctx context.Context, t *models.Topic) (*models.Topic, error) {
	var result models.Topic
	err := sqlx.GetContext(ctx, s.db, &result, `
		INSERT INTO topics (forum_id, user_id, title, description, started_at, pinned, locked, hidden)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+topicColumns,
		t.ForumID, t.UserID, t.Title, t.Description, t.StartedAt, t.Pinned, t.Locked, t.Hidden,
	)
	if err != nil {
		return nil, fmt.Errorf("create topic: %w", err)
	}
	return &result, nil
}

// Update modifies the editable fields of a topic.
func (s *TopicStore) Update(ctx context.Context, t *models.Topic) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE topics SET
			title = $1, description = $2, pinned = $3, locked = $4, hidden = $5
		WHERE id = $6
	`, t.Title, t.Description, t.Pinned, t.Locked, t.Hidden, t.ID)
	if err != nil {
		return fmt.Errorf("update topic: %w", err)
	}
	return nil
}

// AddViews increments a topic's view count by n and returns the new count.
// Returns nil if the topic no longer exists.
func (s *TopicStore) AddViews(ctx context.Context, id int64, n int) (*int, error) {
	var count int
	err := sqlx.GetContext(ctx, s.db, &count, `
		UPDATE topics SET view_count = view_count + $1
		WHERE id = $2
		RETURNING view_count
	`, n, id)
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("add topic views: %w", err)
	}
	return &count, nil
}

// Delete removes a topic by ID. Its posts cascade.
func (s *TopicStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM topics WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete topic: %w", err)
	}
	return nil
}
