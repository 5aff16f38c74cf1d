package main

import (
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"forumcore/internal/cache"
	"forumcore/internal/config"
	"forumcore/internal/database"
	"forumcore/internal/engine"
	"forumcore/internal/forum"
	"forumcore/internal/markdown"
)

// app holds the connections and services every command shares.
type app struct {
	cfg    *config.Config
	db     *sqlx.DB
	valkey *redis.Client // nil unless FORUM_USE_VALKEY
	svc    *forum.Service
}

// openApp loads configuration, connects to PostgreSQL (and Valkey when
// enabled) and builds the forum service. Migrations are not applied.
func openApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	slog.Info("configuration loaded",
		"env", cfg.Env,
		"addr", cfg.Addr(),
		"isolation", cfg.TxIsolation,
		"valkey", cfg.UseValkey,
	)

	db, err := database.Connect(cfg.DSN())
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, db: db}

	var views forum.ViewBuffer
	var reads forum.ReadTracker
	if cfg.UseValkey {
		a.valkey, err = cache.ConnectValkey(cfg.ValkeyHost, cfg.ValkeyPort, cfg.ValkeyPassword)
		if err != nil {
			db.Close()
			return nil, err
		}
		views = cache.NewViewCounter(a.valkey)
		reads = cache.NewReadTracker(a.valkey, cache.DefaultReadTTL)
	} else {
		slog.Warn("valkey disabled, views are written directly and read tracking is off")
	}

	eng := engine.New(engine.Options{
		CountMetaPostsInProfile: cfg.ProfileCountsMeta,
		VerifyInvariants:        cfg.VerifyInvariants,
	})
	a.svc = forum.NewService(db, eng, markdown.NewFormatter(cfg.MediaURL, nil), views, reads, forum.Options{
		Isolation: cfg.Isolation(),
		Retries:   cfg.TxRetries,
	})
	return a, nil
}

// migrate applies pending migrations.
func (a *app) migrate() error {
	return database.Migrate(a.db.DB)
}

func (a *app) Close() {
	if a.valkey != nil {
		a.valkey.Close()
	}
	a.db.Close()
}
