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

// CreateSection adds a section before the section beforeID, or last when
// beforeID is nil.
func (s *Service) CreateSection(ctx context.Context, name string, beforeID *int64) (*models.Section, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("section name is required")
	}

	var sec *models.Section
	err := s.mutate(ctx, "create_section", func(t *txn) error {
		order, err := s.eng.InsertBefore(t.ctx, t.tx, engine.SectionScope(), beforeID)
		if err != nil {
			return err
		}
		sec, err = t.sections.Create(t.ctx, name, order)
		return err
	})
	if err != nil {
		return nil, err
	}
	slog.Info("section created", "id", sec.ID, "name", sec.Name, "order", sec.Order)
	return sec, nil
}

// RenameSection changes a section's name.
func (s *Service) RenameSection(ctx context.Context, id int64, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return invalid("section name is required")
	}
	return s.mutate(ctx, "rename_section", func(t *txn) error {
		sec, err := t.sections.LockByID(t.ctx, id)
		if err != nil {
			return err
		}
		if sec == nil {
			return notFound("section", id)
		}
		return t.sections.Rename(t.ctx, id, name)
	})
}

// DeleteSection removes a section with everything in it, closes the gap it
// leaves in the section order and recounts the posts of every user who had
// posted in it.
func (s *Service) DeleteSection(ctx context.Context, id int64) error {
	err := s.mutate(ctx, "delete_section", func(t *txn) error {
		sec, err := t.sections.LockByID(t.ctx, id)
		if err != nil {
			return err
		}
		if sec == nil {
			return notFound("section", id)
		}
		// Authors are read only after every forum is locked, or a post
		// committed in between would be cascaded away uncounted.
		if _, err := t.forums.LockBySection(t.ctx, id); err != nil {
			return err
		}

		authors, err := s.eng.UsersWithPosts(t.ctx, t.tx, engine.SectionPosts(id))
		if err != nil {
			return err
		}
		if err := t.sections.Delete(t.ctx, id); err != nil {
			return err
		}
		if err := s.eng.Remove(t.ctx, t.tx, engine.SectionScope(), sec.Order); err != nil {
			return err
		}
		t.profiles.Forget(authors...)
		return s.eng.RecomputeProfilePostCounts(t.ctx, t.tx, authors)
	})
	if err != nil {
		return err
	}
	slog.Info("section deleted", "id", id)
	return nil
}

// NewForum describes a forum to create.
type NewForum struct {
	SectionID   int64
	Name        string
	Description string
	Locked      bool
	Hidden      bool

	// BeforeID places the forum before a sibling; nil appends it.
	BeforeID *int64
}

// CreateForum adds a forum to a section.
func (s *Service) CreateForum(ctx context.Context, nf NewForum) (*models.Forum, error) {
	nf.Name = strings.TrimSpace(nf.Name)
	if nf.Name == "" {
		return nil, invalid("forum name is required")
	}

	var forum *models.Forum
	err := s.mutate(ctx, "create_forum", func(t *txn) error {
		sec, err := t.sections.LockByID(t.ctx, nf.SectionID)
		if err != nil {
			return err
		}
		if sec == nil {
			return notFound("section", nf.SectionID)
		}

		order, err := s.eng.InsertBefore(t.ctx, t.tx, engine.ForumScope(sec.ID), nf.BeforeID)
		if err != nil {
			return err
		}
		forum, err = t.forums.Create(t.ctx, &models.Forum{
			SectionID:   sec.ID,
			Name:        nf.Name,
			Description: nf.Description,
			Order:       order,
			Locked:      nf.Locked,
			Hidden:      nf.Hidden,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	slog.Info("forum created", "id", forum.ID, "section_id", forum.SectionID, "order", forum.Order)
	return forum, nil
}

// ForumChanges lists the forum fields to change. Nil fields are kept.
type ForumChanges struct {
	Name        *string
	Description *string
	Locked      *bool
	Hidden      *bool
}

// UpdateForum changes a forum's editable fields.
func (s *Service) UpdateForum(ctx context.Context, id int64, c ForumChanges) (*models.Forum, error) {
	if c.Name != nil && strings.TrimSpace(*c.Name) == "" {
		return nil, invalid("forum name is required")
	}

	var forum *models.Forum
	err := s.mutate(ctx, "update_forum", func(t *txn) error {
		var err error
		forum, err = t.forums.LockByID(t.ctx, id)
		if err != nil {
			return err
		}
		if forum == nil {
			return notFound("forum", id)
		}
		if c.Name != nil {
			forum.Name = strings.TrimSpace(*c.Name)
		}
		if c.Description != nil {
			forum.Description = *c.Description
		}
		if c.Locked != nil {
			forum.Locked = *c.Locked
		}
		if c.Hidden != nil {
			forum.Hidden = *c.Hidden
		}
		return t.forums.Update(t.ctx, forum)
	})
	if err != nil {
		return nil, err
	}
	return forum, nil
}

// DeleteForum removes a forum with its topics and posts, closes the gap it
// leaves in its section and recounts the posts of every affected user.
func (s *Service) DeleteForum(ctx context.Context, id int64) error {
	err := s.mutate(ctx, "delete_forum", func(t *txn) error {
		peek, err := t.forums.FindByID(t.ctx, id)
		if err != nil {
			return err
		}
		if peek == nil {
			return notFound("forum", id)
		}
		if _, err := t.sections.LockByID(t.ctx, peek.SectionID); err != nil {
			return err
		}
		forum, err := t.forums.LockByID(t.ctx, id)
		if err != nil {
			return err
		}
		if forum == nil {
			return notFound("forum", id)
		}
		if forum.SectionID != peek.SectionID {
			return ErrConcurrentModification
		}

		authors, err := s.eng.UsersWithPosts(t.ctx, t.tx, engine.ForumPosts(id))
		if err != nil {
			return err
		}
		if err := t.forums.Delete(t.ctx, id); err != nil {
			return err
		}
		if err := s.eng.Remove(t.ctx, t.tx, engine.ForumScope(forum.SectionID), forum.Order); err != nil {
			return err
		}
		t.profiles.Forget(authors...)
		return s.eng.RecomputeProfilePostCounts(t.ctx, t.tx, authors)
	})
	if err != nil {
		return err
	}
	slog.Info("forum deleted", "id", id)
	return nil
}

// lockTopic locks a topic and its forum, forum first. The topic is read
// once without a lock to learn its forum.
func (t *txn) lockTopic(id int64) (*models.Forum, *models.Topic, error) {
	peek, err := t.topics.FindByID(t.ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if peek == nil {
		return nil, nil, notFound("topic", id)
	}
	forum, err := t.forums.LockByID(t.ctx, peek.ForumID)
	if err != nil {
		return nil, nil, err
	}
	if forum == nil {
		return nil, nil, notFound("forum", peek.ForumID)
	}
	topic, err := t.topics.LockByID(t.ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if topic == nil {
		return nil, nil, notFound("topic", id)
	}
	if topic.ForumID != forum.ID {
		return nil, nil, ErrConcurrentModification
	}
	return forum, topic, nil
}

// lockPost locks a post along with its topic and forum, parent first.
func (t *txn) lockPost(id int64) (*models.Forum, *models.Topic, *models.Post, error) {
	peek, err := t.posts.FindByID(t.ctx, id)
	if err != nil {
		return nil, nil, nil, err
	}
	if peek == nil {
		return nil, nil, nil, notFound("post", id)
	}
	forum, topic, err := t.lockTopic(peek.TopicID)
	if err != nil {
		return nil, nil, nil, err
	}
	post, err := t.posts.LockByID(t.ctx, id)
	if err != nil {
		return nil, nil, nil, err
	}
	if post == nil {
		return nil, nil, nil, notFound("post", id)
	}
	if post.TopicID != topic.ID {
		return nil, nil, nil, ErrConcurrentModification
	}
	return forum, topic, post, nil
}
