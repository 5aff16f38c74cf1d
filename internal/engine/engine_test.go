package engine

import (
	"context"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"forumcore/internal/database/dbtest"
)

var ctx = context.Background()

// newMock returns an sqlx handle backed by sqlmock. Unmet expectations
// fail the test.
func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return sqlx.NewDb(db, "pgx"), mock
}

// sqlPattern matches statements containing every fragment in order.
func sqlPattern(fragments ...string) string {
	quoted := make([]string, len(fragments))
	for i, f := range fragments {
		quoted[i] = regexp.QuoteMeta(f)
	}
	return strings.Join(quoted, ".*")
}

// integration opens a rolled-back transaction and a fixture writing to it.
func integration(t *testing.T) (*sqlx.Tx, *dbtest.Fixture) {
	t.Helper()
	tx := dbtest.Begin(t)
	return tx, dbtest.NewFixture(t, tx)
}

// minutes returns a timestamp n minutes after a fixed base in the past.
func minutes(n int) time.Time {
	return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(n) * time.Minute)
}

func TestNewKeepsOptions(t *testing.T) {
	opts := Options{CountMetaPostsInProfile: true, VerifyInvariants: true}
	require.Equal(t, opts, New(opts).Options())
}
