// Package dbtest provides the PostgreSQL helpers shared by integration
// tests. Tests are skipped when the database is not reachable, and every
// test runs inside its own transaction that is rolled back afterwards.
package dbtest

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"forumcore/internal/database"
	"forumcore/internal/models"
)

// DSN returns the PostgreSQL connection string for testing.
// Uses environment variables with defaults matching docker-compose.yml.
func DSN() string {
	host := envOr("POSTGRES_HOST", "localhost")
	port := envOr("POSTGRES_PORT", "5432")
	user := envOr("POSTGRES_USER", "forum")
	pass := envOr("POSTGRES_PASSWORD", "changeme")
	name := envOr("POSTGRES_DB", "forum")
	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=disable&connect_timeout=2"
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

var migrateOnce sync.Once
var migrateErr error

// Open connects to the test database and applies migrations. If the
// database is unavailable, the test is skipped.
func Open(t testing.TB) *sqlx.DB {
	t.Helper()

	db, err := database.Connect(DSN())
	if err != nil {
		t.Skipf("skipping integration test: DB not reachable: %v", err)
	}

	migrateOnce.Do(func() { migrateErr = database.Migrate(db.DB) })
	if migrateErr != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", migrateErr)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

// Begin opens a repeatable read transaction that is rolled back when the
// test finishes, so tests never see each other's rows.
func Begin(t testing.TB) *sqlx.Tx {
	t.Helper()

	db := Open(t)
	tx, err := db.BeginTxx(context.Background(), &sql.TxOptions{Isolation: sql.LevelRepeatableRead})
	if err != nil {
		t.Fatalf("begin test tx: %v", err)
	}
	t.Cleanup(func() { tx.Rollback() })
	return tx
}

// Now returns the current time with the precision PostgreSQL stores.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// Fixture inserts rows directly, bypassing every denormalization. Tests
// that need consistent aggregates settle them through the engine.
type Fixture struct {
	T testing.TB
	Q sqlx.ExtContext
}

// NewFixture returns a Fixture writing through q.
func NewFixture(t testing.TB, q sqlx.ExtContext) *Fixture {
	return &Fixture{T: t, Q: q}
}

func (f *Fixture) get(dest any, query string, args ...any) {
	f.T.Helper()
	if err := sqlx.GetContext(context.Background(), f.Q, dest, query, args...); err != nil {
		f.T.Fatalf("fixture: %v", err)
	}
}

// unique returns name with a random suffix.
func unique(name string) string {
	return fmt.Sprintf("%s-%s", name, uuid.NewString()[:8])
}

// User inserts a user with a unique name derived from name.
func (f *Fixture) User(name string) *models.User {
	f.T.Helper()
	var u models.User
	f.get(&u, `INSERT INTO users (username) VALUES ($1) RETURNING id, username, password_hash, date_joined`, unique(name))
	return &u
}

// Section appends a section to the end of the section order.
func (f *Fixture) Section(name string) *models.Section {
	f.T.Helper()
	var s models.Section
	f.get(&s, `
		INSERT INTO sections (name, sort_order)
		VALUES ($1, (SELECT COUNT(*) + 1 FROM sections))
		RETURNING id, name, sort_order
	`, unique(name))
	return &s
}

// Forum appends a forum to a section.
func (f *Fixture) Forum(sectionID int64, name string) *models.Forum {
	f.T.Helper()
	var id int64
	f.get(&id, `
		INSERT INTO forums (section_id, name, sort_order)
		VALUES ($1, $2, (SELECT COUNT(*) + 1 FROM forums WHERE section_id = $1))
		RETURNING id
	`, sectionID, name)
	return f.ReloadForum(id)
}

// Topic inserts a topic without posts.
func (f *Fixture) Topic(forumID, userID int64, title string, hidden bool) *models.Topic {
	f.T.Helper()
	var id int64
	f.get(&id, `
		INSERT INTO topics (forum_id, user_id, title, started_at, hidden)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, forumID, userID, title, Now(), hidden)
	return f.ReloadTopic(id)
}

// Post appends a post to a channel of a topic at postedAt.
func (f *Fixture) Post(topicID, userID int64, meta bool, postedAt time.Time) *models.Post {
	f.T.Helper()
	var id int64
	f.get(&id, `
		INSERT INTO posts (topic_id, user_id, body, posted_at, meta, num_in_topic)
		VALUES ($1, $2, 'body', $3, $4,
			(SELECT COUNT(*) + 1 FROM posts WHERE topic_id = $1 AND meta = $4))
		RETURNING id
	`, topicID, userID, postedAt, meta)
	return f.ReloadPost(id)
}

// ReloadForum reads a forum back from the database.
func (f *Fixture) ReloadForum(id int64) *models.Forum {
	f.T.Helper()
	var v models.Forum
	f.get(&v, `SELECT * FROM forums WHERE id = $1`, id)
	return &v
}

// ReloadTopic reads a topic back from the database.
func (f *Fixture) ReloadTopic(id int64) *models.Topic {
	f.T.Helper()
	var v models.Topic
	f.get(&v, `SELECT * FROM topics WHERE id = $1`, id)
	return &v
}

// ReloadPost reads a post back with its joined author and topic details.
func (f *Fixture) ReloadPost(id int64) *models.Post {
	f.T.Helper()
	var v models.Post
	f.get(&v, `
		SELECT p.*, u.username, t.title AS topic_title, t.hidden AS topic_hidden, t.forum_id
		FROM posts p
		JOIN topics t ON t.id = p.topic_id
		JOIN users u ON u.id = p.user_id
		WHERE p.id = $1
	`, id)
	return &v
}

// Positions returns the positions of one channel of a topic ordered by
// (posted_at, id).
func (f *Fixture) Positions(topicID int64, meta bool) []int {
	f.T.Helper()
	var out []int
	err := sqlx.SelectContext(context.Background(), f.Q, &out, `
		SELECT num_in_topic FROM posts
		WHERE topic_id = $1 AND meta = $2
		ORDER BY posted_at, id
	`, topicID, meta)
	if err != nil {
		f.T.Fatalf("fixture positions: %v", err)
	}
	return out
}

// ProfilePostCount returns the stored profile count of a user, or -1 when
// the user has no profile.
func (f *Fixture) ProfilePostCount(userID int64) int {
	f.T.Helper()
	var n int
	err := sqlx.GetContext(context.Background(), f.Q, &n,
		`SELECT COALESCE((SELECT post_count FROM forum_profiles WHERE user_id = $1), -1)`, userID)
	if err != nil {
		f.T.Fatalf("fixture profile count: %v", err)
	}
	return n
}

// Orders returns the sort orders in an order scope ordered by id, where
// sectionID 0 selects the sections themselves.
func (f *Fixture) Orders(sectionID int64) map[int64]int {
	f.T.Helper()
	type row struct {
		ID    int64 `db:"id"`
		Order int   `db:"sort_order"`
	}
	var rows []row
	var err error
	if sectionID == 0 {
		err = sqlx.SelectContext(context.Background(), f.Q, &rows, `SELECT id, sort_order FROM sections`)
	} else {
		err = sqlx.SelectContext(context.Background(), f.Q, &rows, `SELECT id, sort_order FROM forums WHERE section_id = $1`, sectionID)
	}
	if err != nil {
		f.T.Fatalf("fixture orders: %v", err)
	}
	out := make(map[int64]int, len(rows))
	for _, r := range rows {
		out[r.ID] = r.Order
	}
	return out
}
