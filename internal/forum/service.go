// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package forum implements the lifecycle operations of the forum
// hierarchy. Every mutation runs in exactly one transaction, locks the rows
// it changes parent first (forum, then topic, then post) and calls the
// engine to bring every denormalized field up to date before committing.
package forum

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"forumcore/internal/database"
	"forumcore/internal/engine"
	"forumcore/internal/store"
)

// Errors returned by the service. Engine errors pass through unchanged so
// callers can test for them here.
var (
	ErrNotFound               = engine.ErrNotFound
	ErrInvariantViolation     = engine.ErrInvariantViolation
	ErrConcurrentModification = engine.ErrConcurrentModification
	ErrInvalidTransition      = engine.ErrInvalidTransition

	// ErrInvalidInput means a required field is empty or malformed.
	ErrInvalidInput = errors.New("invalid input")
)

var (
	mutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forum_mutations_total",
		Help: "Forum mutations by operation and result",
	}, []string{"operation", "result"})

	mutationRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forum_mutation_retries_total",
		Help: "Forum mutations retried after a conflict, by operation",
	}, []string{"operation"})
)

// Formatter renders a post body into HTML.
type Formatter interface {
	Format(body string, emoticons bool) (string, error)
}

// ViewBuffer collects topic views outside the database.
type ViewBuffer interface {
	Increment(ctx context.Context, topicID int64) error
	Drain(ctx context.Context) (map[int64]int, error)
	Restore(ctx context.Context, counts map[int64]int) error
	Pending(ctx context.Context, topicIDs []int64) ([]int, error)
}

// ReadTracker remembers when users last read topics.
type ReadTracker interface {
	MarkRead(ctx context.Context, userID, topicID int64, at time.Time) error
	LastRead(ctx context.Context, userID, topicID int64) (*time.Time, error)
}

// Options configures a Service.
type Options struct {
	// Isolation is the isolation level of every mutation.
	Isolation sql.IsolationLevel

	// Retries is how many times a mutation is repeated after a
	// serialization failure, deadlock or ordering conflict.
	Retries int

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// Service exposes the forum's lifecycle operations.
type Service struct {
	db     *sqlx.DB
	eng    *engine.Engine
	format Formatter
	views  ViewBuffer  // nil: views go straight to the database
	reads  ReadTracker // nil: read tracking disabled
	opts   Options
}

// NewService creates a Service. views and reads may be nil.
func NewService(db *sqlx.DB, eng *engine.Engine, format Formatter, views ViewBuffer, reads ReadTracker, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Isolation == sql.LevelDefault {
		opts.Isolation = sql.LevelSerializable
	}
	return &Service{db: db, eng: eng, format: format, views: views, reads: reads, opts: opts}
}

// now returns the current time at the precision PostgreSQL stores, so
// cached timestamps compare equal to the rows they were copied from.
func (s *Service) now() time.Time {
	return s.opts.Now().UTC().Truncate(time.Microsecond)
}

// txn bundles the stores of one transaction with a profile cache that
// lives exactly as long as the transaction.
type txn struct {
	ctx      context.Context
	tx       *sqlx.Tx
	users    *store.UserStore
	profiles *store.ProfileCache
	sections *store.SectionStore
	forums   *store.ForumStore
	topics   *store.TopicStore
	posts    *store.PostStore
}

func newTxn(ctx context.Context, tx *sqlx.Tx) *txn {
	return &txn{
		ctx:      ctx,
		tx:       tx,
		users:    store.NewUserStore(tx),
		profiles: store.NewProfileCache(store.NewProfileStore(tx)),
		sections: store.NewSectionStore(tx),
		forums:   store.NewForumStore(tx),
		topics:   store.NewTopicStore(tx),
		posts:    store.NewPostStore(tx),
	}
}

// mutate runs fn in one transaction, repeating it from scratch when the
// database reports a conflict another attempt can resolve. fn must not
// keep state between attempts.
func (s *Service) mutate(ctx context.Context, op string, fn func(t *txn) error) error {
	log := slog.With("op", op, "op_id", uuid.NewString())
	txOpts := &sql.TxOptions{Isolation: s.opts.Isolation}

	for attempt := 1; ; attempt++ {
		err := database.WithTx(ctx, s.db, txOpts, func(tx *sqlx.Tx) error {
			return fn(newTxn(ctx, tx))
		})
		if err == nil {
			mutationsTotal.WithLabelValues(op, "ok").Inc()
			log.Debug("forum mutation committed", "attempt", attempt)
			return nil
		}
		if retryable(err) && attempt <= s.opts.Retries && ctx.Err() == nil {
			mutationRetries.WithLabelValues(op).Inc()
			log.Warn("forum mutation conflict, retrying", "attempt", attempt, "error", err)
			continue
		}

		err = engine.Classify(err)
		mutationsTotal.WithLabelValues(op, "error").Inc()
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrInvalidTransition) {
			log.Info("forum mutation rejected", "error", err)
		} else {
			log.Error("forum mutation failed", "attempt", attempt, "error", err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
}

// orderingConstraints are the deferred unique constraints that two
// concurrent inserts can both pass until commit.
var orderingConstraints = map[string]bool{
	"sections_sort_order_key":       true,
	"forums_section_sort_order_key": true,
	"posts_topic_position_key":      true,
}

// retryable reports whether repeating the whole transaction can succeed.
func retryable(err error) bool {
	if database.IsRetryable(err) || errors.Is(err, ErrConcurrentModification) {
		return true
	}
	return database.SQLState(err) == database.CodeUniqueViolation && orderingConstraints[database.ConstraintName(err)]
}

func notFound(kind string, id int64) error {
	return fmt.Errorf("%s %d: %w", kind, id, ErrNotFound)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
