// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"forumcore/internal/models"
)

// postDetailColumns selects a post together with the author and topic
// details the engine needs to cache it as a last post.
const postDetailColumns = `p.id, p.topic_id, p.user_id, p.body, p.body_html, p.posted_at, p.edited_at,
	p.user_ip, p.meta, p.emoticons, p.num_in_topic,
	u.username, t.title AS topic_title, t.hidden AS topic_hidden, t.forum_id`

const postDetailJoins = `
	FROM posts p
	JOIN topics t ON t.id = p.topic_id
	JOIN users u ON u.id = p.user_id`

// PostStore manages posts in the database. Positions are assigned and
// shifted by the engine.
type PostStore struct {
	db DB
}

// NewPostStore returns a new PostStore.
func NewPostStore(db DB) *PostStore {
	return &PostStore{db: db}
}

// FindByID retrieves a post with its author and topic details. Returns nil
// if not found.
func (s *PostStore) FindByID(ctx context.Context, id int64) (*models.Post, error) {
	var p models.Post
	err := sqlx.GetContext(ctx, s.db, &p, `SELECT `+postDetailColumns+postDetailJoins+` WHERE p.id = $1`, id)
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find post by id: %w", err)
	}
	return &p, nil
}

// LockByID retrieves a post like FindByID and locks the post row until the
// end of the transaction.
func (s *PostStore) LockByID(ctx context.Context, id int64) (*models.Post, error) {
	var p models.Post
	err := sqlx.GetContext(ctx, s.db, &p, `SELECT `+postDetailColumns+postDetailJoins+` WHERE p.id = $1 FOR UPDATE OF p`, id)
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lock post: %w", err)
	}
	return &p, nil
}

// ListPage returns one page of a channel. Positions are dense, so a page
// is a range of num_in_topic rather than an OFFSET scan.
func (s *PostStore) ListPage(ctx context.Context, topicID int64, ch models.Channel, page, perPage int) ([]models.Post, error) {
	var items []models.Post
	err := sqlx.SelectContext(ctx, s.db, &items, `
		SELECT `+postDetailColumns+postDetailJoins+`
		WHERE p.topic_id = $1 AND p.meta = $2
		  AND p.num_in_topic > $3 AND p.num_in_topic <= $4
		ORDER BY p.num_in_topic, p.id
	`, topicID, ch.IsMeta(), (page-1)*perPage, page*perPage)
	if err != nil {
		return nil, fmt.Errorf("list post page: %w", err)
	}
	return items, nil
}

// FindFirstUnread returns the earliest regular post in a topic made after
// since. Returns nil if there is none.
func (s *PostStore) FindFirstUnread(ctx context.Context, topicID int64, since time.Time) (*models.Post, error) {
	var p models.Post
	err := sqlx.GetContext(ctx, s.db, &p, `
		SELECT `+postDetailColumns+postDetailJoins+`
		WHERE p.topic_id = $1 AND p.meta = FALSE AND p.posted_at > $2
		ORDER BY p.posted_at, p.id
		LIMIT 1
	`, topicID, since)
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find first unread post: %w", err)
	}
	return &p, nil
}

// LatestPostedAt returns the newest posted_at in a topic across both
// channels, or nil if the topic has no posts.
func (s *PostStore) LatestPostedAt(ctx context.Context, topicID int64) (*time.Time, error) {
	var at *time.Time
	err := sqlx.GetContext(ctx, s.db, &at, `SELECT MAX(posted_at) FROM posts WHERE topic_id = $1`, topicID)
	if err != nil {
		return nil, fmt.Errorf("latest post time: %w", err)
	}
	return at, nil
}

// Create inserts a new post and fills in its generated ID. The post's
// position must already be assigned.
func (s *PostStore) Create(ctx context.Context, p *models.Post) error {
	err := sqlx.GetContext(ctx, s.db, &p.ID, `
		INSERT INTO posts (topic_id, user_id, body, body_html, posted_at, user_ip, meta, emoticons, num_in_topic)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`, p.TopicID, p.UserID, p.Body, p.BodyHTML, p.PostedAt, p.UserIP, p.Meta, p.Emoticons, p.NumInTopic)
	if err != nil {
		return fmt.Errorf("create post: %w", err)
	}
	return nil
}

// UpdateBody stores an edited body, its rendered HTML and the edit time.
func (s *PostStore) UpdateBody(ctx context.Context, p *models.Post) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE posts SET body = $1, body_html = $2, emoticons = $3, edited_at = $4
		WHERE id = $5
	`, p.Body, p.BodyHTML, p.Emoticons, p.EditedAt, p.ID)
	if err != nil {
		return fmt.Errorf("update post body: %w", err)
	}
	return nil
}

// SetChannel moves a post into a channel at the given position.
func (s *PostStore) SetChannel(ctx context.Context, id int64, meta bool, numInTopic int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE posts SET meta = $1, num_in_topic = $2
		WHERE id = $3
	`, meta, numInTopic, id)
	if err != nil {
		return fmt.Errorf("set post channel: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("set post channel: post %d does not exist", id)
	}
	return nil
}

// Delete removes a post by ID.
func (s *PostStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	return nil
}
