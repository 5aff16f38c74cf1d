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
	"forumcore/internal/store"
)

// pointerAction says how a cached last post reference must be refreshed
// after a post changes channel.
type pointerAction int

const (
	keepPointer   pointerAction = iota // reference unaffected
	writePointer                       // the post becomes the reference
	lookupPointer                      // the reference must be looked up again
)

// PromoteToMeta moves a regular post into the metapost channel of its
// topic. post, topic and forum must be freshly loaded inside the caller's
// transaction, with post loaded through the post store.
func (e *Engine) PromoteToMeta(ctx context.Context, q sqlx.ExtContext, post *models.Post, topic *models.Topic, forum *models.Forum) error {
	return observe("promote_to_meta", e.transition(ctx, q, post, topic, forum, models.MetaChannel))
}

// DemoteToRegular moves a metapost back into the regular channel of its
// topic. The same loading requirements as PromoteToMeta apply.
func (e *Engine) DemoteToRegular(ctx context.Context, q sqlx.ExtContext, post *models.Post, topic *models.Topic, forum *models.Forum) error {
	return observe("demote_to_regular", e.transition(ctx, q, post, topic, forum, models.RegularChannel))
}

func (e *Engine) transition(ctx context.Context, q sqlx.ExtContext, post *models.Post, topic *models.Topic, forum *models.Forum, to models.Channel) error {
	from := post.Channel()
	if from == to {
		return fmt.Errorf("post %d is already %s: %w", post.ID, to, ErrInvalidTransition)
	}
	if post.TopicID != topic.ID || topic.ForumID != forum.ID {
		return fmt.Errorf("post %d, topic %d and forum %d are not related: %w",
			post.ID, topic.ID, forum.ID, ErrInvariantViolation)
	}

	// Decide what happens to the cached references before anything moves,
	// while they still describe the current state.
	topicAction, forumAction := keepPointer, keepPointer
	if to.IsMeta() {
		if HoldsTopicLastPost(topic, post) {
			topicAction = lookupPointer
		}
		if HoldsForumLastPost(forum, post) {
			forumAction = lookupPointer
		}
	} else {
		topicAction = arrivalAction(topic.LastPostAt, post.PostedAt)
		if !topic.Hidden {
			forumAction = arrivalAction(forum.LastPostAt, post.PostedAt)
		}
	}

	if _, err := e.UpdatePositions(ctx, q, topic.ID, post.NumInTopic, false, from); err != nil {
		return err
	}

	after, err := e.InsertionPoint(ctx, q, post, to)
	if err != nil {
		return err
	}
	if _, err := e.UpdatePositions(ctx, q, topic.ID, after, true, to); err != nil {
		return err
	}
	if err := store.NewPostStore(q).SetChannel(ctx, post.ID, to.IsMeta(), after+1); err != nil {
		return err
	}
	post.Meta, post.NumInTopic = to.IsMeta(), after+1

	// The regular channel's reference and count are refreshed together.
	switch topicAction {
	case writePointer:
		err = e.SetTopicLastPost(ctx, q, topic, post)
	case lookupPointer:
		err = e.SetTopicLastPost(ctx, q, topic, nil)
	default:
		_, err = e.RecomputePostCount(ctx, q, topic, models.RegularChannel)
	}
	if err != nil {
		return err
	}
	if _, err := e.RecomputePostCount(ctx, q, topic, models.MetaChannel); err != nil {
		return err
	}

	switch forumAction {
	case writePointer:
		err = e.SetForumLastPost(ctx, q, forum, post)
	case lookupPointer:
		err = e.SetForumLastPost(ctx, q, forum, nil)
	}
	if err != nil {
		return err
	}

	if !e.opts.CountMetaPostsInProfile {
		if _, err := e.RecomputeProfilePostCount(ctx, q, post.UserID); err != nil {
			return err
		}
	}

	if e.opts.VerifyInvariants {
		for _, ch := range []models.Channel{from, to} {
			if err := e.VerifyPositions(ctx, q, topic.ID, ch); err != nil {
				return err
			}
		}
	}
	return nil
}

// arrivalAction decides what a post entering the regular channel does to
// a cached reference last. A strictly newer post replaces it outright; a
// post with the same timestamp needs the id tie-break of a lookup.
func arrivalAction(last *time.Time, postedAt time.Time) pointerAction {
	switch {
	case last == nil || postedAt.After(*last):
		return writePointer
	case postedAt.Equal(*last):
		return lookupPointer
	default:
		return keepPointer
	}
}
