// Package store provides database access methods for all forum entities.
// Each store struct wraps a DB, which is either the connection pool or the
// transaction of the current mutation, and exposes typed query methods.
package store

import (
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

// DB is satisfied by both *sqlx.DB and *sqlx.Tx.
type DB = sqlx.ExtContext

// noRows reports whether err means the row does not exist.
func noRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
