// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package engine

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"forumcore/internal/models"
)

// countColumn maps a channel to the topic column caching its post count.
func countColumn(ch models.Channel) string {
	switch ch {
	case models.MetaChannel:
		return "metapost_count"
	default:
		return "post_count"
	}
}

// profileFilter restricts a profile count to regular posts unless the
// deployment counts metaposts too. p aliases the posts table.
func (e *Engine) profileFilter() string {
	if e.opts.CountMetaPostsInProfile {
		return ""
	}
	return " AND p.meta = FALSE"
}

// RecomputePostCount stores the exact number of posts a topic has in one
// channel and returns it. topic is updated in place.
func (e *Engine) RecomputePostCount(ctx context.Context, q sqlx.ExtContext, topic *models.Topic, ch models.Channel) (int, error) {
	col := countColumn(ch)
	var n int
	err := sqlx.GetContext(ctx, q, &n, `
		UPDATE topics SET `+col+` = (
			SELECT COUNT(*) FROM posts WHERE topic_id = $1 AND meta = $2
		)
		WHERE id = $1
		RETURNING `+col,
		topic.ID, ch.IsMeta(),
	)
	if noRows(err) {
		err = fmt.Errorf("topic %d: %w", topic.ID, ErrNotFound)
	} else if err != nil {
		err = fmt.Errorf("recompute %s: %w", col, err)
	}
	if err != nil {
		return 0, observe("recompute_post_count", err)
	}
	topic.SetCount(ch, n)
	return n, observe("recompute_post_count", nil)
}

// RecomputeTopicCount stores the exact number of topics in a forum,
// hidden ones included, and returns it. forum is updated in place.
func (e *Engine) RecomputeTopicCount(ctx context.Context, q sqlx.ExtContext, forum *models.Forum) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, q, &n, `
		UPDATE forums SET topic_count = (
			SELECT COUNT(*) FROM topics WHERE forum_id = $1
		)
		WHERE id = $1
		RETURNING topic_count
	`, forum.ID)
	if noRows(err) {
		err = fmt.Errorf("forum %d: %w", forum.ID, ErrNotFound)
	} else if err != nil {
		err = fmt.Errorf("recompute topic_count: %w", err)
	}
	if err != nil {
		return 0, observe("recompute_topic_count", err)
	}
	forum.TopicCount = n
	return n, observe("recompute_topic_count", nil)
}

// RecomputeProfilePostCount stores the exact number of posts a user has
// authored on their forum profile, creating the profile if needed.
func (e *Engine) RecomputeProfilePostCount(ctx context.Context, q sqlx.ExtContext, userID int64) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, q, &n, `
		INSERT INTO forum_profiles (user_id, post_count)
		SELECT u.id, (SELECT COUNT(*) FROM posts p WHERE p.user_id = u.id`+e.profileFilter()+`)
		FROM users u
		WHERE u.id = $1
		ON CONFLICT (user_id) DO UPDATE SET post_count = EXCLUDED.post_count
		RETURNING post_count
	`, userID)
	if noRows(err) {
		err = fmt.Errorf("user %d: %w", userID, ErrNotFound)
	} else if err != nil {
		err = fmt.Errorf("recompute profile post_count: %w", err)
	}
	return n, observe("recompute_profile_post_count", err)
}

// RecomputeProfilePostCounts does what RecomputeProfilePostCount does for
// many users in one statement. Ids of users that no longer exist are
// ignored.
func (e *Engine) RecomputeProfilePostCounts(ctx context.Context, q sqlx.ExtContext, userIDs []int64) error {
	if len(userIDs) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`
		INSERT INTO forum_profiles (user_id, post_count)
		SELECT u.id, (SELECT COUNT(*) FROM posts p WHERE p.user_id = u.id`+e.profileFilter()+`)
		FROM users u
		WHERE u.id IN (?)
		ON CONFLICT (user_id) DO UPDATE SET post_count = EXCLUDED.post_count
	`, userIDs)
	if err != nil {
		return observe("recompute_profile_post_counts", fmt.Errorf("expand user ids: %w", err))
	}
	if _, err := q.ExecContext(ctx, q.Rebind(query), args...); err != nil {
		return observe("recompute_profile_post_counts", fmt.Errorf("bulk recompute profile post_count: %w", err))
	}
	return observe("recompute_profile_post_counts", nil)
}

// PostScope selects every post below one node of the hierarchy.
type PostScope struct {
	join  string
	where string
	id    int64
}

// SectionPosts selects the posts in every forum of a section.
func SectionPosts(sectionID int64) PostScope {
	return PostScope{
		join:  " JOIN topics t ON t.id = p.topic_id JOIN forums f ON f.id = t.forum_id",
		where: "f.section_id = $1",
		id:    sectionID,
	}
}

// ForumPosts selects the posts in every topic of a forum.
func ForumPosts(forumID int64) PostScope {
	return PostScope{
		join:  " JOIN topics t ON t.id = p.topic_id",
		where: "t.forum_id = $1",
		id:    forumID,
	}
}

// TopicPosts selects the posts of a topic.
func TopicPosts(topicID int64) PostScope {
	return PostScope{where: "p.topic_id = $1", id: topicID}
}

// UsersWithPosts returns the distinct authors of the posts in scope. Call
// it before a cascading delete to learn whose profiles need recomputing.
func (e *Engine) UsersWithPosts(ctx context.Context, q sqlx.ExtContext, scope PostScope) ([]int64, error) {
	var ids []int64
	err := sqlx.SelectContext(ctx, q, &ids,
		`SELECT DISTINCT p.user_id FROM posts p`+scope.join+` WHERE `+scope.where+` ORDER BY p.user_id`,
		scope.id)
	if err != nil {
		return nil, observe("users_with_posts", fmt.Errorf("list post authors: %w", err))
	}
	return ids, observe("users_with_posts", nil)
}
