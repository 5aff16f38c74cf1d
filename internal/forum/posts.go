// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package forum

import (
	"context"
	"log/slog"
	"strings"

	"github.com/jmoiron/sqlx"

	"forumcore/internal/engine"
	"forumcore/internal/models"
)

// NewPost describes a reply to a topic.
type NewPost struct {
	TopicID   int64
	UserID    int64
	Body      string
	Emoticons bool
	Meta      bool
	UserIP    *string
}

// CreatePost adds a post to the end of a topic's regular or metapost
// channel.
func (s *Service) CreatePost(ctx context.Context, np NewPost) (*models.Post, error) {
	if strings.TrimSpace(np.Body) == "" {
		return nil, invalid("post body is required")
	}
	html, err := s.format.Format(np.Body, np.Emoticons)
	if err != nil {
		return nil, err
	}

	var post *models.Post
	err = s.mutate(ctx, "create_post", func(t *txn) error {
		forum, topic, err := t.lockTopic(np.TopicID)
		if err != nil {
			return err
		}
		user, err := t.users.FindByID(t.ctx, np.UserID)
		if err != nil {
			return err
		}
		if user == nil {
			return notFound("user", np.UserID)
		}

		post = &models.Post{
			TopicID:   topic.ID,
			UserID:    user.ID,
			Body:      np.Body,
			BodyHTML:  html,
			PostedAt:  s.now(),
			UserIP:    np.UserIP,
			Meta:      np.Meta,
			Emoticons: np.Emoticons,
		}
		return s.insertPost(t, forum, topic, user, post)
	})
	if err != nil {
		return nil, err
	}
	slog.Debug("post created", "id", post.ID, "topic_id", post.TopicID, "meta", post.Meta, "num_in_topic", post.NumInTopic)
	return post, nil
}

// insertPost appends post to its channel and brings the topic, forum and
// author up to date. forum and topic must be locked.
func (s *Service) insertPost(t *txn, forum *models.Forum, topic *models.Topic, user *models.User, post *models.Post) error {
	// A post never sorts before one already in the topic or, when it will
	// become the forum's newest, before the forum's current newest.
	latest, err := t.posts.LatestPostedAt(t.ctx, topic.ID)
	if err != nil {
		return err
	}
	if latest != nil && post.PostedAt.Before(*latest) {
		post.PostedAt = *latest
	}
	if !post.Meta && !topic.Hidden && forum.LastPostAt != nil && post.PostedAt.Before(*forum.LastPostAt) {
		post.PostedAt = *forum.LastPostAt
	}

	ch := post.Channel()
	num, err := s.eng.NextPosition(t.ctx, t.tx, topic.ID, ch)
	if err != nil {
		return err
	}
	post.NumInTopic = num
	if err := t.posts.Create(t.ctx, post); err != nil {
		return err
	}
	post.Username = user.Username
	post.TopicTitle = topic.Title
	post.TopicHidden = topic.Hidden
	post.ForumID = forum.ID

	if ch.IsMeta() {
		if _, err := s.eng.RecomputePostCount(t.ctx, t.tx, topic, models.MetaChannel); err != nil {
			return err
		}
	} else {
		if err := s.eng.SetTopicLastPost(t.ctx, t.tx, topic, post); err != nil {
			return err
		}
		if !topic.Hidden {
			if err := s.eng.SetForumLastPost(t.ctx, t.tx, forum, post); err != nil {
				return err
			}
		}
	}

	author, err := s.refreshProfile(t, user.ID)
	if err != nil {
		return err
	}
	post.Author = author
	return s.verify(t, topic.ID, ch)
}

// PostEdit lists the post fields to change. Nil fields are kept.
type PostEdit struct {
	Body      *string
	Emoticons *bool
	Meta      *bool
}

// EditPost changes a post's body and formatting. Changing Meta moves the
// post between channels exactly like PromoteToMeta and DemoteToRegular.
func (s *Service) EditPost(ctx context.Context, id int64, e PostEdit) (*models.Post, error) {
	if e.Body != nil && strings.TrimSpace(*e.Body) == "" {
		return nil, invalid("post body is required")
	}

	var post *models.Post
	err := s.mutate(ctx, "edit_post", func(t *txn) error {
		forum, topic, locked, err := t.lockPost(id)
		if err != nil {
			return err
		}
		post = locked

		if e.Body != nil || e.Emoticons != nil {
			if e.Body != nil {
				post.Body = *e.Body
			}
			if e.Emoticons != nil {
				post.Emoticons = *e.Emoticons
			}
			html, err := s.format.Format(post.Body, post.Emoticons)
			if err != nil {
				return err
			}
			now := s.now()
			post.BodyHTML, post.EditedAt = html, &now
			if err := t.posts.UpdateBody(t.ctx, post); err != nil {
				return err
			}
		}

		if e.Meta != nil && *e.Meta != post.Meta {
			if *e.Meta {
				return s.eng.PromoteToMeta(t.ctx, t.tx, post, topic, forum)
			}
			return s.eng.DemoteToRegular(t.ctx, t.tx, post, topic, forum)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return post, nil
}

// DeletePost removes a post. Removing the first regular post of a topic
// removes the whole topic; the returned flag reports when that happened.
func (s *Service) DeletePost(ctx context.Context, id int64) (topicDeleted bool, err error) {
	err = s.mutate(ctx, "delete_post", func(t *txn) error {
		topicDeleted = false
		forum, topic, post, err := t.lockPost(id)
		if err != nil {
			return err
		}
		if !post.Meta && post.NumInTopic == 1 {
			topicDeleted = true
			return s.deleteTopic(t, forum, topic)
		}

		ch := post.Channel()
		heldByTopic := !post.Meta && engine.HoldsTopicLastPost(topic, post)
		heldByForum := !post.Meta && !topic.Hidden && engine.HoldsForumLastPost(forum, post)

		if err := t.posts.Delete(t.ctx, post.ID); err != nil {
			return err
		}
		if _, err := s.eng.UpdatePositions(t.ctx, t.tx, topic.ID, post.NumInTopic, false, ch); err != nil {
			return err
		}

		switch {
		case heldByTopic:
			err = s.eng.SetTopicLastPost(t.ctx, t.tx, topic, nil)
		default:
			_, err = s.eng.RecomputePostCount(t.ctx, t.tx, topic, ch)
		}
		if err != nil {
			return err
		}
		if heldByForum {
			if err := s.eng.SetForumLastPost(t.ctx, t.tx, forum, nil); err != nil {
				return err
			}
		}

		if _, err := s.refreshProfile(t, post.UserID); err != nil {
			return err
		}
		return s.verify(t, topic.ID, ch)
	})
	if err != nil {
		return false, err
	}
	slog.Debug("post deleted", "id", id, "topic_deleted", topicDeleted)
	return topicDeleted, nil
}

// PromoteToMeta turns a regular post into a metapost.
func (s *Service) PromoteToMeta(ctx context.Context, id int64) (*models.Post, error) {
	return s.moderate(ctx, "promote_to_meta", id, s.eng.PromoteToMeta)
}

// DemoteToRegular turns a metapost into a regular post.
func (s *Service) DemoteToRegular(ctx context.Context, id int64) (*models.Post, error) {
	return s.moderate(ctx, "demote_to_regular", id, s.eng.DemoteToRegular)
}

type transitionFunc func(context.Context, sqlx.ExtContext, *models.Post, *models.Topic, *models.Forum) error

func (s *Service) moderate(ctx context.Context, op string, id int64, move transitionFunc) (*models.Post, error) {
	var post *models.Post
	err := s.mutate(ctx, op, func(t *txn) error {
		forum, topic, locked, err := t.lockPost(id)
		if err != nil {
			return err
		}
		post = locked
		return move(t.ctx, t.tx, post, topic, forum)
	})
	if err != nil {
		return nil, err
	}
	slog.Info("post moderated", "op", op, "id", post.ID, "meta", post.Meta, "num_in_topic", post.NumInTopic)
	return post, nil
}

// refreshProfile recounts a user's posts and returns their profile from
// the transaction's cache with the new count.
func (s *Service) refreshProfile(t *txn, userID int64) (*models.ForumProfile, error) {
	n, err := s.eng.RecomputeProfilePostCount(t.ctx, t.tx, userID)
	if err != nil {
		return nil, err
	}
	p, err := t.profiles.Get(t.ctx, userID)
	if err != nil {
		return nil, err
	}
	t.profiles.SetPostCount(userID, n)
	return p, nil
}

// verify checks a channel's positions when invariant checks are enabled.
func (s *Service) verify(t *txn, topicID int64, ch models.Channel) error {
	if !s.eng.Options().VerifyInvariants {
		return nil
	}
	return s.eng.VerifyPositions(t.ctx, t.tx, topicID, ch)
}
