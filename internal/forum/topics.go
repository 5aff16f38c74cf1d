// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package forum

import (
	"context"
	"log/slog"
	"strings"

	"forumcore/internal/engine"
	"forumcore/internal/models"
)

// NewTopic describes a topic to start, together with its opening post.
type NewTopic struct {
	ForumID     int64
	UserID      int64
	Title       string
	Description string
	Pinned      bool
	Locked      bool
	Hidden      bool

	Body      string
	Emoticons bool
	UserIP    *string
}

// CreateTopic starts a topic in a forum. The topic's opening post is
// created in the same transaction and is returned alongside it.
func (s *Service) CreateTopic(ctx context.Context, nt NewTopic) (*models.Topic, *models.Post, error) {
	nt.Title = strings.TrimSpace(nt.Title)
	if nt.Title == "" {
		return nil, nil, invalid("topic title is required")
	}
	if strings.TrimSpace(nt.Body) == "" {
		return nil, nil, invalid("post body is required")
	}
	html, err := s.format.Format(nt.Body, nt.Emoticons)
	if err != nil {
		return nil, nil, err
	}

	var topic *models.Topic
	var post *models.Post
	err = s.mutate(ctx, "create_topic", func(t *txn) error {
		forum, err := t.forums.LockByID(t.ctx, nt.ForumID)
		if err != nil {
			return err
		}
		if forum == nil {
			return notFound("forum", nt.ForumID)
		}
		user, err := t.users.FindByID(t.ctx, nt.UserID)
		if err != nil {
			return err
		}
		if user == nil {
			return notFound("user", nt.UserID)
		}

		now := s.now()
		topic, err = t.topics.Create(t.ctx, &models.Topic{
			ForumID:     forum.ID,
			UserID:      user.ID,
			Title:       nt.Title,
			Description: nt.Description,
			StartedAt:   now,
			Pinned:      nt.Pinned,
			Locked:      nt.Locked,
			Hidden:      nt.Hidden,
		})
		if err != nil {
			return err
		}

		post = &models.Post{
			TopicID:   topic.ID,
			UserID:    user.ID,
			Body:      nt.Body,
			BodyHTML:  html,
			PostedAt:  now,
			UserIP:    nt.UserIP,
			Emoticons: nt.Emoticons,
		}
		if err := s.insertPost(t, forum, topic, user, post); err != nil {
			return err
		}
		_, err = s.eng.RecomputeTopicCount(t.ctx, t.tx, forum)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	slog.Info("topic created", "id", topic.ID, "forum_id", topic.ForumID, "user_id", topic.UserID)
	return topic, post, nil
}

// TopicChanges lists the topic fields to change. Nil fields are kept.
type TopicChanges struct {
	Title       *string
	Description *string
	Pinned      *bool
	Locked      *bool
	Hidden      *bool
}

// UpdateTopic changes a topic's editable fields. Hiding or revealing a
// topic, or renaming the topic its forum shows as last active, refreshes
// the forum's last post details. Counts are unaffected: hidden topics and
// their posts are still counted.
func (s *Service) UpdateTopic(ctx context.Context, id int64, c TopicChanges) (*models.Topic, error) {
	if c.Title != nil && strings.TrimSpace(*c.Title) == "" {
		return nil, invalid("topic title is required")
	}

	var topic *models.Topic
	err := s.mutate(ctx, "update_topic", func(t *txn) error {
		forum, locked, err := t.lockTopic(id)
		if err != nil {
			return err
		}
		topic = locked
		prev := *topic

		if c.Title != nil {
			topic.Title = strings.TrimSpace(*c.Title)
		}
		if c.Description != nil {
			topic.Description = *c.Description
		}
		if c.Pinned != nil {
			topic.Pinned = *c.Pinned
		}
		if c.Locked != nil {
			topic.Locked = *c.Locked
		}
		if c.Hidden != nil {
			topic.Hidden = *c.Hidden
		}
		if err := t.topics.Update(t.ctx, topic); err != nil {
			return err
		}

		holds := forum.LastTopicID != nil && *forum.LastTopicID == topic.ID
		switch {
		case prev.Hidden && !topic.Hidden:
			// The topic's newest post may now be the forum's newest.
			return s.eng.SetForumLastPost(t.ctx, t.tx, forum, nil)
		case holds && topic.Hidden:
			return s.eng.SetForumLastPost(t.ctx, t.tx, forum, nil)
		case holds && prev.Title != topic.Title:
			return s.eng.SetForumLastPost(t.ctx, t.tx, forum, nil)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return topic, nil
}

// DeleteTopic removes a topic with all of its posts.
func (s *Service) DeleteTopic(ctx context.Context, id int64) error {
	err := s.mutate(ctx, "delete_topic", func(t *txn) error {
		forum, topic, err := t.lockTopic(id)
		if err != nil {
			return err
		}
		return s.deleteTopic(t, forum, topic)
	})
	if err != nil {
		return err
	}
	slog.Info("topic deleted", "id", id)
	return nil
}

// deleteTopic removes a locked topic and repairs everything that counted
// or referenced its posts.
func (s *Service) deleteTopic(t *txn, forum *models.Forum, topic *models.Topic) error {
	authors, err := s.eng.UsersWithPosts(t.ctx, t.tx, engine.TopicPosts(topic.ID))
	if err != nil {
		return err
	}
	held := forum.LastTopicID != nil && *forum.LastTopicID == topic.ID

	if err := t.topics.Delete(t.ctx, topic.ID); err != nil {
		return err
	}
	if _, err := s.eng.RecomputeTopicCount(t.ctx, t.tx, forum); err != nil {
		return err
	}
	if held {
		if err := s.eng.SetForumLastPost(t.ctx, t.tx, forum, nil); err != nil {
			return err
		}
	}
	t.profiles.Forget(authors...)
	return s.eng.RecomputeProfilePostCounts(t.ctx, t.tx, authors)
}
