// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"forumcore/internal/models"
)

// lastPost is the subset of a post cached as a last post reference.
type lastPost struct {
	ID         int64     `db:"id"`
	PostedAt   time.Time `db:"posted_at"`
	UserID     int64     `db:"user_id"`
	Username   string    `db:"username"`
	TopicID    int64     `db:"topic_id"`
	TopicTitle string    `db:"topic_title"`
}

// lookupAttempts bounds how often a fallback lookup is repeated when its
// result does not survive verification.
const lookupAttempts = 2

// HoldsTopicLastPost reports whether topic's cached last post details
// point at post.
func HoldsTopicLastPost(topic *models.Topic, post *models.Post) bool {
	return topic.LastPostAt != nil && topic.LastPostAt.Equal(post.PostedAt) &&
		topic.LastUserID != nil && *topic.LastUserID == post.UserID
}

// HoldsForumLastPost reports whether forum's cached last post details
// point at post.
func HoldsForumLastPost(forum *models.Forum, post *models.Post) bool {
	return forum.LastTopicID != nil && *forum.LastTopicID == post.TopicID &&
		forum.LastPostAt != nil && forum.LastPostAt.Equal(post.PostedAt) &&
		forum.LastUserID != nil && *forum.LastUserID == post.UserID
}

// SetTopicLastPost updates the topic's cached last post details and its
// regular post count.
//
// A regular post of this topic is written as is. Otherwise, including when
// post is nil, the most recent regular post is looked up by
// (posted_at, id) and the details are cleared when there is none.
func (e *Engine) SetTopicLastPost(ctx context.Context, q sqlx.ExtContext, topic *models.Topic, post *models.Post) error {
	if post != nil && !post.Meta && post.TopicID == topic.ID {
		return observe("set_topic_last_post", e.writeTopicLastPost(ctx, q, topic, &lastPost{
			ID:       post.ID,
			PostedAt: post.PostedAt,
			UserID:   post.UserID,
			Username: post.Username,
		}))
	}

	latest, err := e.lookup(ctx, "topic",
		func() (*lastPost, error) { return latestTopicPost(ctx, q, topic.ID) },
		func(c *lastPost) (bool, error) { return verifyTopicPost(ctx, q, topic.ID, c) },
	)
	if err == nil {
		err = e.writeTopicLastPost(ctx, q, topic, latest)
	}
	return observe("set_topic_last_post", err)
}

// SetForumLastPost updates the forum's cached last post details.
//
// A regular post in a visible topic of this forum is written as is; post
// must carry its topic details as loaded by the post store. Otherwise,
// including when post is nil, the most recent regular post among the
// forum's visible topics is looked up and the details are cleared when
// there is none.
func (e *Engine) SetForumLastPost(ctx context.Context, q sqlx.ExtContext, forum *models.Forum, post *models.Post) error {
	if post != nil && !post.Meta && !post.TopicHidden && post.ForumID == forum.ID {
		return observe("set_forum_last_post", e.writeForumLastPost(ctx, q, forum, &lastPost{
			ID:         post.ID,
			PostedAt:   post.PostedAt,
			UserID:     post.UserID,
			Username:   post.Username,
			TopicID:    post.TopicID,
			TopicTitle: post.TopicTitle,
		}))
	}

	latest, err := e.lookup(ctx, "forum",
		func() (*lastPost, error) { return latestForumPost(ctx, q, forum.ID) },
		func(c *lastPost) (bool, error) { return verifyForumPost(ctx, q, forum.ID, c) },
	)
	if err == nil {
		err = e.writeForumLastPost(ctx, q, forum, latest)
	}
	return observe("set_forum_last_post", err)
}

// lookup finds the latest eligible post and re-checks the answer with a
// second statement. Under weaker isolation levels a concurrent commit can
// land between the two; the lookup is then repeated once before giving up
// with ErrConcurrentModification.
func (e *Engine) lookup(ctx context.Context, target string, find func() (*lastPost, error), verify func(*lastPost) (bool, error)) (*lastPost, error) {
	for attempt := 1; attempt <= lookupAttempts; attempt++ {
		candidate, err := find()
		if err != nil {
			return nil, err
		}
		ok, err := verify(candidate)
		if err != nil {
			return nil, err
		}
		if ok {
			switch {
			case attempt > 1:
				lastPostLookups.WithLabelValues(target, "retried").Inc()
			case candidate == nil:
				lastPostLookups.WithLabelValues(target, "empty").Inc()
			default:
				lastPostLookups.WithLabelValues(target, "found").Inc()
			}
			return candidate, nil
		}
	}
	lastPostLookups.WithLabelValues(target, "conflict").Inc()
	return nil, fmt.Errorf("%s last post lookup: %w", target, ErrConcurrentModification)
}

func latestTopicPost(ctx context.Context, q sqlx.ExtContext, topicID int64) (*lastPost, error) {
	var lp lastPost
	err := sqlx.GetContext(ctx, q, &lp, `
		SELECT p.id, p.posted_at, p.user_id, u.username, p.topic_id, '' AS topic_title
		FROM posts p
		JOIN users u ON u.id = p.user_id
		WHERE p.topic_id = $1 AND p.meta = FALSE
		ORDER BY p.posted_at DESC, p.id DESC
		LIMIT 1
		FOR SHARE OF p
	`, topicID)
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find latest topic post: %w", err)
	}
	return &lp, nil
}

func verifyTopicPost(ctx context.Context, q sqlx.ExtContext, topicID int64, c *lastPost) (bool, error) {
	var ok bool
	var err error
	if c == nil {
		err = sqlx.GetContext(ctx, q, &ok, `
			SELECT NOT EXISTS (SELECT 1 FROM posts WHERE topic_id = $1 AND meta = FALSE)
		`, topicID)
	} else {
		err = sqlx.GetContext(ctx, q, &ok, `
			SELECT EXISTS (SELECT 1 FROM posts WHERE id = $2 AND topic_id = $1 AND meta = FALSE)
			   AND NOT EXISTS (
				SELECT 1 FROM posts
				WHERE topic_id = $1 AND meta = FALSE
				  AND (posted_at, id) > ($3::timestamptz, $2::bigint)
			)
		`, topicID, c.ID, c.PostedAt)
	}
	if err != nil {
		return false, fmt.Errorf("verify latest topic post: %w", err)
	}
	return ok, nil
}

func latestForumPost(ctx context.Context, q sqlx.ExtContext, forumID int64) (*lastPost, error) {
	var lp lastPost
	err := sqlx.GetContext(ctx, q, &lp, `
		SELECT p.id, p.posted_at, p.user_id, u.username, t.id AS topic_id, t.title AS topic_title
		FROM posts p
		JOIN topics t ON t.id = p.topic_id
		JOIN users u ON u.id = p.user_id
		WHERE t.forum_id = $1 AND t.hidden = FALSE AND p.meta = FALSE
		ORDER BY p.posted_at DESC, p.id DESC
		LIMIT 1
		FOR SHARE OF p
	`, forumID)
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find latest forum post: %w", err)
	}
	return &lp, nil
}

func verifyForumPost(ctx context.Context, q sqlx.ExtContext, forumID int64, c *lastPost) (bool, error) {
	var ok bool
	var err error
	if c == nil {
		err = sqlx.GetContext(ctx, q, &ok, `
			SELECT NOT EXISTS (
				SELECT 1 FROM posts p JOIN topics t ON t.id = p.topic_id
				WHERE t.forum_id = $1 AND t.hidden = FALSE AND p.meta = FALSE
			)
		`, forumID)
	} else {
		err = sqlx.GetContext(ctx, q, &ok, `
			SELECT EXISTS (
				SELECT 1 FROM posts p JOIN topics t ON t.id = p.topic_id
				WHERE p.id = $2 AND t.forum_id = $1 AND t.hidden = FALSE AND p.meta = FALSE
			) AND NOT EXISTS (
				SELECT 1 FROM posts p JOIN topics t ON t.id = p.topic_id
				WHERE t.forum_id = $1 AND t.hidden = FALSE AND p.meta = FALSE
				  AND (p.posted_at, p.id) > ($3::timestamptz, $2::bigint)
			)
		`, forumID, c.ID, c.PostedAt)
	}
	if err != nil {
		return false, fmt.Errorf("verify latest forum post: %w", err)
	}
	return ok, nil
}

// writeTopicLastPost stores lp (or cleared details when lp is nil) on the
// topic together with a fresh regular post count.
func (e *Engine) writeTopicLastPost(ctx context.Context, q sqlx.ExtContext, topic *models.Topic, lp *lastPost) error {
	var (
		at       *time.Time
		userID   *int64
		username string
	)
	if lp != nil {
		at, userID, username = &lp.PostedAt, &lp.UserID, lp.Username
	}

	var count int
	err := sqlx.GetContext(ctx, q, &count, `
		UPDATE topics SET
			last_post_at = $1, last_user_id = $2, last_username = $3,
			post_count = (SELECT COUNT(*) FROM posts WHERE topic_id = $4 AND meta = FALSE)
		WHERE id = $4
		RETURNING post_count
	`, at, userID, username, topic.ID)
	if noRows(err) {
		return fmt.Errorf("topic %d: %w", topic.ID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("write topic last post: %w", err)
	}

	topic.LastPostAt, topic.LastUserID, topic.LastUsername = at, userID, username
	topic.PostCount = count
	return nil
}

// writeForumLastPost stores lp (or cleared details when lp is nil) on the
// forum.
func (e *Engine) writeForumLastPost(ctx context.Context, q sqlx.ExtContext, forum *models.Forum, lp *lastPost) error {
	var (
		at       *time.Time
		topicID  *int64
		title    string
		userID   *int64
		username string
	)
	if lp != nil {
		at, topicID, title, userID, username = &lp.PostedAt, &lp.TopicID, lp.TopicTitle, &lp.UserID, lp.Username
	}

	res, err := q.ExecContext(ctx, `
		UPDATE forums SET
			last_post_at = $1, last_topic_id = $2, last_topic_title = $3,
			last_user_id = $4, last_username = $5
		WHERE id = $6
	`, at, topicID, title, userID, username, forum.ID)
	if err != nil {
		return fmt.Errorf("write forum last post: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("forum %d: %w", forum.ID, ErrNotFound)
	}

	forum.LastPostAt, forum.LastTopicID, forum.LastTopicTitle = at, topicID, title
	forum.LastUserID, forum.LastUsername = userID, username
	return nil
}
