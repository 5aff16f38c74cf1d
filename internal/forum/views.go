// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package forum

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"forumcore/internal/models"
	"forumcore/internal/store"
)

// DefaultPostsPerPage is used when a reader has no preference of their own.
const DefaultPostsPerPage = 20

// RecordView counts one view of a topic. With a view buffer the view is
// only buffered and reaches the topic on the next FlushViews.
func (s *Service) RecordView(ctx context.Context, topicID int64) error {
	if s.views != nil {
		return s.views.Increment(ctx, topicID)
	}
	return s.mutate(ctx, "record_view", func(t *txn) error {
		n, err := t.topics.AddViews(t.ctx, topicID, 1)
		if err != nil {
			return err
		}
		if n == nil {
			return notFound("topic", topicID)
		}
		return nil
	})
}

// FlushViews moves buffered views into the topics' view counts and returns
// how many topics were updated. Views of topics deleted since are dropped.
// If the database write fails the views are put back into the buffer.
func (s *Service) FlushViews(ctx context.Context) (int, error) {
	if s.views == nil {
		return 0, nil
	}
	counts, err := s.views.Drain(ctx)
	if err != nil {
		// Whatever was drained before the failure is already gone from
		// the buffer.
		s.restoreViews(ctx, counts)
		return 0, fmt.Errorf("drain views: %w", err)
	}
	if len(counts) == 0 {
		return 0, nil
	}

	var updated int
	err = s.mutate(ctx, "flush_views", func(t *txn) error {
		updated = 0
		for id, n := range counts {
			total, err := t.topics.AddViews(t.ctx, id, n)
			if err != nil {
				return err
			}
			if total != nil {
				updated++
			}
		}
		return nil
	})
	if err != nil {
		s.restoreViews(ctx, counts)
		return 0, err
	}
	slog.Debug("views flushed", "topics", updated)
	return updated, nil
}

// restoreViews puts drained counts back into the buffer.
func (s *Service) restoreViews(ctx context.Context, counts map[int64]int) {
	if len(counts) == 0 {
		return
	}
	if err := s.views.Restore(context.WithoutCancel(ctx), counts); err != nil {
		slog.Error("views lost after failed flush", "topics", len(counts), "error", err)
	}
}

// AddPendingViews adds views still waiting in the buffer to the topics'
// view counts, so listings are current between flushes.
func (s *Service) AddPendingViews(ctx context.Context, topics []models.Topic) error {
	if s.views == nil || len(topics) == 0 {
		return nil
	}
	ids := make([]int64, len(topics))
	for i := range topics {
		ids[i] = topics[i].ID
	}
	pending, err := s.views.Pending(ctx, ids)
	if err != nil {
		return fmt.Errorf("pending views: %w", err)
	}
	for i := range topics {
		if i < len(pending) {
			topics[i].ViewCount += pending[i]
		}
	}
	return nil
}

// MarkRead records that a user has read a topic up to now.
func (s *Service) MarkRead(ctx context.Context, userID, topicID int64) error {
	if s.reads == nil {
		return nil
	}
	return s.reads.MarkRead(ctx, userID, topicID, s.now())
}

// LastRead returns when a user last read a topic, or nil if they have not
// read it recently.
func (s *Service) LastRead(ctx context.Context, userID, topicID int64) (*time.Time, error) {
	if s.reads == nil {
		return nil, nil
	}
	return s.reads.LastRead(ctx, userID, topicID)
}

// FirstUnread returns the first regular post a user has not read yet. It
// returns nil when the user has no read marker for the topic, or has read
// every post.
func (s *Service) FirstUnread(ctx context.Context, userID, topicID int64) (*models.Post, error) {
	since, err := s.LastRead(ctx, userID, topicID)
	if err != nil || since == nil {
		return nil, err
	}
	return store.NewPostStore(s.db).FindFirstUnread(ctx, topicID, *since)
}

// PostPage returns the 1-based page of its channel a post appears on.
func PostPage(post *models.Post, perPage int) int {
	if perPage <= 0 {
		perPage = DefaultPostsPerPage
	}
	if post.NumInTopic < 1 {
		return 1
	}
	return (post.NumInTopic-1)/perPage + 1
}

// PostLocation finds the topic and page of a post as seen by a reader,
// honouring their posts-per-page preference. viewerID may be zero for
// anonymous readers.
func (s *Service) PostLocation(ctx context.Context, postID, viewerID int64) (*models.Post, int, error) {
	post, err := store.NewPostStore(s.db).FindByID(ctx, postID)
	if err != nil {
		return nil, 0, err
	}
	if post == nil {
		return nil, 0, notFound("post", postID)
	}

	perPage := DefaultPostsPerPage
	if viewerID != 0 {
		profile, err := store.NewProfileStore(s.db).FindByUserID(ctx, viewerID)
		if err != nil {
			return nil, 0, err
		}
		if profile != nil && profile.PostsPerPage != nil {
			perPage = *profile.PostsPerPage
		}
	}
	return post, PostPage(post, perPage), nil
}
