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

const forumColumns = `id, section_id, name, description, sort_order, locked, hidden,
	topic_count, last_post_at, last_topic_id, last_topic_title, last_user_id, last_username`

// ForumStore manages forums in the database. Denormalized columns are only
// ever written by the engine.
type ForumStore struct {
	db DB
}

// NewForumStore returns a new ForumStore.
func NewForumStore(db DB) *ForumStore {
	return &ForumStore{db: db}
}

// List returns every forum ordered by section and sort_order.
func (s *ForumStore) List(ctx context.Context) ([]models.Forum, error) {
	var items []models.Forum
	err := sqlx.SelectContext(ctx, s.db, &items, `
		SELECT `+forumColumns+`
		FROM forums
		ORDER BY (SELECT sort_order FROM sections WHERE sections.id = forums.section_id),
		         sort_order, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list forums: %w", err)
	}
	return items, nil
}

// ListBySection returns the forums of one section ordered by sort_order.
func (s *ForumStore) ListBySection(ctx context.Context, sectionID int64) ([]models.Forum, error) {
	var items []models.Forum
	err := sqlx.SelectContext(ctx, s.db, &items, `
		SELECT `+forumColumns+`
		FROM forums
		WHERE section_id = $1
		ORDER BY sort_order, id
	`, sectionID)
	if err != nil {
		return nil, fmt.Errorf("list forums by section: %w", err)
	}
	return items, nil
}

// FindByID retrieves a forum by ID. Returns nil if not found.
func (s *ForumStore) FindByID(ctx context.Context, id int64) (*models.Forum, error) {
	var f models.Forum
	err := sqlx.GetContext(ctx, s.db, &f, `SELECT `+forumColumns+` FROM forums WHERE id = $1`, id)
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find forum by id: %w", err)
	}
	return &f, nil
}

// LockByID retrieves a forum by ID and locks its row until the end of the
// transaction. Returns nil if not found.
func (s *ForumStore) LockByID(ctx context.Context, id int64) (*models.Forum, error) {
	var f models.Forum
	err := sqlx.GetContext(ctx, s.db, &f, `SELECT `+forumColumns+` FROM forums WHERE id = $1 FOR UPDATE`, id)
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lock forum: %w", err)
	}
	return &f, nil
}

// LockBySection locks every forum of a section, in id order, and returns
// their ids. Writers to a forum hold its row lock, so once this returns no
// post or topic is being added anywhere in the section.
func (s *ForumStore) LockBySection(ctx context.Context, sectionID int64) ([]int64, error) {
	var ids []int64
	err := sqlx.SelectContext(ctx, s.db, &ids, `
		SELECT id FROM forums
		WHERE section_id = $1
		ORDER BY id
		FOR UPDATE
	`, sectionID)
	if err != nil {
		return nil, fmt.Errorf("lock forums by section: %w", err)
	}
	return ids, nil
}

// Create inserts a new forum and returns it with the generated ID.
func (s *ForumStore) Create(ctx context.Context, f *models.Forum) (*models.Forum, error) {
	var result models.Forum
	err := sqlx.GetContext(ctx, s.db, &result, `
		INSERT INTO forums (section_id, name, description, sort_order, locked, hidden)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+forumColumns,
		f.SectionID, f.Name, f.Description, f.Order, f.Locked, f.Hidden,
	)
	if err != nil {
		return nil, fmt.Errorf("create forum: %w", err)
	}
	return &result, nil
}

// Update modifies the editable fields of a forum.
func (s *ForumStore) Update(ctx context.Context, f *models.Forum) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE forums SET
			name = $1, description = $2, locked = $3, hidden = $4
		WHERE id = $5
	`, f.Name, f.Description, f.Locked, f.Hidden, f.ID)
	if err != nil {
		return fmt.Errorf("update forum: %w", err)
	}
	return nil
}

// Delete removes a forum by ID. Its topics and posts cascade.
func (s *ForumStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM forums WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete forum: %w", err)
	}
	return nil
}
