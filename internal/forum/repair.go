// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package forum

import (
	"context"
	"log/slog"

	"forumcore/internal/engine"
	"forumcore/internal/models"
	"forumcore/internal/store"
)

// RepairReport summarises what Repair recomputed.
type RepairReport struct {
	Sections int
	Forums   int
	Topics   int
	Users    int
}

// Repair recomputes every denormalized field from the rows it summarises:
// sort orders, post positions, counts, last post details and profile post
// counts. Running it on consistent data changes nothing, so it is safe to
// run at any time.
//
// Work is split into one transaction per forum so a large forum does not
// hold every lock at once.
func (s *Service) Repair(ctx context.Context) (*RepairReport, error) {
	report := &RepairReport{}

	err := s.mutate(ctx, "repair_order", func(t *txn) error {
		if err := s.eng.Compact(t.ctx, t.tx, engine.SectionScope()); err != nil {
			return err
		}
		sections, err := t.sections.List(t.ctx)
		if err != nil {
			return err
		}
		for _, sec := range sections {
			if err := s.eng.Compact(t.ctx, t.tx, engine.ForumScope(sec.ID)); err != nil {
				return err
			}
		}
		report.Sections = len(sections)
		return nil
	})
	if err != nil {
		return nil, err
	}

	forums, err := store.NewForumStore(s.db).List(ctx)
	if err != nil {
		return nil, err
	}
	for _, f := range forums {
		var topics int
		err := s.mutate(ctx, "repair_forum", func(t *txn) error {
			topics = -1
			forum, err := t.forums.LockByID(t.ctx, f.ID)
			if err != nil || forum == nil {
				return err
			}
			topics, err = s.repairForum(t, forum)
			return err
		})
		if err != nil {
			return nil, err
		}
		if topics < 0 {
			continue // deleted meanwhile
		}
		report.Forums++
		report.Topics += topics
	}

	err = s.mutate(ctx, "repair_profiles", func(t *txn) error {
		ids, err := t.users.IDs(t.ctx)
		if err != nil {
			return err
		}
		report.Users = len(ids)
		return s.eng.RecomputeProfilePostCounts(t.ctx, t.tx, ids)
	})
	if err != nil {
		return nil, err
	}

	slog.Info("repair finished",
		"sections", report.Sections,
		"forums", report.Forums,
		"topics", report.Topics,
		"users", report.Users,
	)
	return report, nil
}

// repairForum recomputes a locked forum and every topic in it.
func (s *Service) repairForum(t *txn, forum *models.Forum) (int, error) {
	topics, err := t.topics.ListByForum(t.ctx, forum.ID, true)
	if err != nil {
		return 0, err
	}
	for i := range topics {
		topic, err := t.topics.LockByID(t.ctx, topics[i].ID)
		if err != nil {
			return 0, err
		}
		if topic == nil {
			continue
		}
		for _, ch := range []models.Channel{models.RegularChannel, models.MetaChannel} {
			if err := s.eng.RenumberTopic(t.ctx, t.tx, topic.ID, ch); err != nil {
				return 0, err
			}
		}
		if err := s.eng.SetTopicLastPost(t.ctx, t.tx, topic, nil); err != nil {
			return 0, err
		}
		if _, err := s.eng.RecomputePostCount(t.ctx, t.tx, topic, models.MetaChannel); err != nil {
			return 0, err
		}
	}
	if _, err := s.eng.RecomputeTopicCount(t.ctx, t.tx, forum); err != nil {
		return 0, err
	}
	if err := s.eng.SetForumLastPost(t.ctx, t.tx, forum, nil); err != nil {
		return 0, err
	}
	return len(topics), nil
}
