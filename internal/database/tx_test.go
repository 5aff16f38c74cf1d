package database

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
)

func TestSQLState(t *testing.T) {
	pgErr := &pgconn.PgError{Code: CodeUniqueViolation, ConstraintName: "posts_topic_position_key"}
	wrapped := fmt.Errorf("insert post: %w", pgErr)

	if got := SQLState(wrapped); got != CodeUniqueViolation {
		t.Errorf("SQLState = %q, want %q", got, CodeUniqueViolation)
	}
	if got := ConstraintName(wrapped); got != "posts_topic_position_key" {
		t.Errorf("ConstraintName = %q", got)
	}
	if got := SQLState(errors.New("plain")); got != "" {
		t.Errorf("SQLState of plain error = %q, want empty", got)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{CodeSerializationFailure, true},
		{CodeDeadlockDetected, true},
		{CodeUniqueViolation, false},
		{CodeCheckViolation, false},
	}
	for _, tt := range tests {
		err := fmt.Errorf("tx: %w", &pgconn.PgError{Code: tt.code})
		if got := IsRetryable(err); got != tt.want {
			t.Errorf("IsRetryable(%s) = %v, want %v", tt.code, got, tt.want)
		}
	}
	if IsRetryable(nil) {
		t.Error("IsRetryable(nil) = true")
	}
}

func TestParseIsolation(t *testing.T) {
	tests := map[string]sql.IsolationLevel{
		"read_committed":  sql.LevelReadCommitted,
		"Read Committed":  sql.LevelReadCommitted,
		"repeatable_read": sql.LevelRepeatableRead,
		"serializable":    sql.LevelSerializable,
		"":                sql.LevelSerializable,
		"bogus":           sql.LevelSerializable,
	}
	for in, want := range tests {
		if got := ParseIsolation(in); got != want {
			t.Errorf("ParseIsolation(%q) = %v, want %v", in, got, want)
		}
	}
}

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { raw.Close() })
	return sqlx.NewDb(raw, "sqlmock"), mock
}

func TestWithTxCommits(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE topics").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := WithTx(t.Context(), db, nil, func(tx *sqlx.Tx) error {
		_, err := tx.Exec("UPDATE topics SET view_count = view_count + 1")
		return err
	})
	if err != nil {
		t.Fatalf("WithTx: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestWithTxRollsBackOnError(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := WithTx(t.Context(), db, nil, func(tx *sqlx.Tx) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("WithTx error = %v, want %v", err, boom)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestWithTxRollsBackOnPanic(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	defer func() {
		if recover() == nil {
			t.Error("expected panic to propagate")
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Error(err)
		}
	}()
	WithTx(t.Context(), db, nil, func(tx *sqlx.Tx) error { panic("boom") })
}
