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

const sectionColumns = `id, name, sort_order`

// SectionStore manages sections in the database. Sort order is assigned by
// the ordering engine; the store only persists what it is given.
type SectionStore struct {
	db DB
}

// NewSectionStore returns a new SectionStore.
func NewSectionStore(db DB) *SectionStore {
	return &SectionStore{db: db}
}

// List returns all sections ordered by sort_order.
func (s *SectionStore) List(ctx context.Context) ([]models.Section, error) {
	var items []models.Section
	err := sqlx.SelectContext(ctx, s.db, &items, `SELECT `+sectionColumns+` FROM sections ORDER BY sort_order, id`)
	if err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	return items, nil
}

// FindByID retrieves a section by ID. Returns nil if not found.
func (s *SectionStore) FindByID(ctx context.Context, id int64) (*models.Section, error) {
	var sec models.Section
	err := sqlx.GetContext(ctx, s.db, &sec, `SELECT `+sectionColumns+` FROM sections WHERE id = $1`, id)
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find section by id: %w", err)
	}
	return &sec, nil
}

// LockByID retrieves a section by ID and locks its row until the end of the
// transaction. Returns nil if not found.
func (s *SectionStore) LockByID(ctx context.Context, id int64) (*models.Section, error) {
	var sec models.Section
	err := sqlx.GetContext(ctx, s.db, &sec, `SELECT `+sectionColumns+` FROM sections WHERE id = $1 FOR UPDATE`, id)
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lock section: %w", err)
	}
	return &sec, nil
}

// Create inserts a new section at the given sort order and returns it.
func (s *SectionStore) Create(ctx context.Context, name string, order int) (*models.Section, error) {
	var sec models.Section
	err := sqlx.GetContext(ctx, s.db, &sec, `
		INSERT INTO sections (name, sort_order)
		VALUES ($1, $2)
		RETURNING `+sectionColumns,
		name, order,
	)
	if err != nil {
		return nil, fmt.Errorf("create section: %w", err)
	}
	return &sec, nil
}

// Rename changes a section's name.
func (s *SectionStore) Rename(ctx context.Context, id int64, name string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE sections SET name = $1 WHERE id = $2`, name, id)
	if err != nil {
		return fmt.Errorf("rename section: %w", err)
	}
	return nil
}

// Delete removes a section by ID. Its forums, topics and posts cascade.
func (s *SectionStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sections WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete section: %w", err)
	}
	return nil
}
