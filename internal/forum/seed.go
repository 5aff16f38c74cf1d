// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package forum

import (
	"context"
	"fmt"
	"log/slog"

	"forumcore/internal/store"
)

const welcomeBody = `Welcome to the forum :)

This topic was created when the forum was first set up. Feel free to
reply here, or start a topic of your own in any forum.`

// SeedDefaults creates a starter section, forum and welcome topic posted by
// the named user. It does nothing if any section already exists.
func (s *Service) SeedDefaults(ctx context.Context, username string) error {
	sections, err := store.NewSectionStore(s.db).List(ctx)
	if err != nil {
		return err
	}
	if len(sections) > 0 {
		slog.Info("forum already has sections, skipping seed")
		return nil
	}

	user, err := store.NewUserStore(s.db).FindByUsername(ctx, username)
	if err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("seed forum: user %q: %w", username, ErrNotFound)
	}

	sec, err := s.CreateSection(ctx, "General", nil)
	if err != nil {
		return err
	}
	f, err := s.CreateForum(ctx, NewForum{
		SectionID:   sec.ID,
		Name:        "Welcome",
		Description: "Introductions and announcements",
	})
	if err != nil {
		return err
	}
	_, _, err = s.CreateTopic(ctx, NewTopic{
		ForumID:   f.ID,
		UserID:    user.ID,
		Title:     "Welcome to the forum",
		Body:      welcomeBody,
		Emoticons: true,
	})
	if err != nil {
		return err
	}

	slog.Info("forum seeded", "section_id", sec.ID, "forum_id", f.ID)
	return nil
}
