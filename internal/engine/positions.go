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

// UpdatePositions shifts the position of every post in one channel of a
// topic that sits after startAt by one, up when increment is set and down
// otherwise, in a single statement. The other channel is never touched.
// It returns the number of posts moved.
//
// After deleting a post call it with the post's old position and
// increment false. Before inserting into the middle of a channel call it
// with the position the new post follows and increment true.
func (e *Engine) UpdatePositions(ctx context.Context, q sqlx.ExtContext, topicID int64, startAt int, increment bool, ch models.Channel) (int64, error) {
	sign := "-"
	if increment {
		sign = "+"
	}
	res, err := q.ExecContext(ctx, `
		UPDATE posts SET num_in_topic = num_in_topic `+sign+` 1
		WHERE topic_id = $1 AND meta = $2 AND num_in_topic > $3
	`, topicID, ch.IsMeta(), startAt)
	if err != nil {
		return 0, observe("update_positions", fmt.Errorf("shift %s positions: %w", ch, err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, observe("update_positions", fmt.Errorf("shift %s positions: %w", ch, err))
	}
	rowsShifted.WithLabelValues("position").Observe(float64(n))
	return n, observe("update_positions", nil)
}

// NextPosition returns the position a post appended to a channel takes.
func (e *Engine) NextPosition(ctx context.Context, q sqlx.ExtContext, topicID int64, ch models.Channel) (int, error) {
	var next int
	err := sqlx.GetContext(ctx, q, &next, `
		SELECT COUNT(*) + 1 FROM posts WHERE topic_id = $1 AND meta = $2
	`, topicID, ch.IsMeta())
	if err != nil {
		err = fmt.Errorf("next %s position: %w", ch, err)
	}
	return next, observe("next_position", err)
}

// InsertionPoint returns the position of the latest post in channel ch
// that precedes post by (posted_at, id), or 0 when post would come first.
// post itself is never counted.
func (e *Engine) InsertionPoint(ctx context.Context, q sqlx.ExtContext, post *models.Post, ch models.Channel) (int, error) {
	var at int
	err := sqlx.GetContext(ctx, q, &at, `
		SELECT COALESCE((
			SELECT num_in_topic FROM posts
			WHERE topic_id = $1 AND meta = $2 AND id <> $4
			  AND (posted_at, id) < ($3::timestamptz, $4::bigint)
			ORDER BY posted_at DESC, id DESC
			LIMIT 1
		), 0)
	`, post.TopicID, ch.IsMeta(), post.PostedAt, post.ID)
	if err != nil {
		err = fmt.Errorf("find %s insertion point: %w", ch, err)
	}
	return at, observe("insertion_point", err)
}

// RenumberTopic rewrites the positions of one channel of a topic to
// 1..N ordered by (posted_at, id). Already correct rows are not written,
// so running it on a consistent topic changes nothing.
func (e *Engine) RenumberTopic(ctx context.Context, q sqlx.ExtContext, topicID int64, ch models.Channel) error {
	_, err := q.ExecContext(ctx, `
		UPDATE posts AS p SET num_in_topic = r.rn
		FROM (
			SELECT id, ROW_NUMBER() OVER (ORDER BY posted_at, id) AS rn
			FROM posts
			WHERE topic_id = $1 AND meta = $2
		) r
		WHERE p.id = r.id AND p.num_in_topic <> r.rn
	`, topicID, ch.IsMeta())
	if err != nil {
		err = fmt.Errorf("renumber %s positions: %w", ch, err)
	}
	return observe("renumber_topic", err)
}

// VerifyPositions checks that the positions of one channel of a topic are
// exactly 1..N in (posted_at, id) order.
func (e *Engine) VerifyPositions(ctx context.Context, q sqlx.ExtContext, topicID int64, ch models.Channel) error {
	var misplaced int
	err := sqlx.GetContext(ctx, q, &misplaced, `
		SELECT COUNT(*) FROM (
			SELECT num_in_topic, ROW_NUMBER() OVER (ORDER BY posted_at, id) AS rn
			FROM posts
			WHERE topic_id = $1 AND meta = $2
		) s
		WHERE s.num_in_topic <> s.rn
	`, topicID, ch.IsMeta())
	if err != nil {
		err = fmt.Errorf("verify %s positions: %w", ch, err)
	} else if misplaced > 0 {
		err = fmt.Errorf("topic %d has %d misplaced %s positions: %w", topicID, misplaced, ch, ErrInvariantViolation)
	}
	return observe("verify_positions", err)
}
