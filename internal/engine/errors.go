// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package engine

import (
	"database/sql"
	"errors"
	"fmt"

	"forumcore/internal/database"
)

var (
	// ErrNotFound means a referenced entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvariantViolation means a counter or position would end up in a
	// state the schema forbids, such as a negative count or a duplicate
	// position.
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrConcurrentModification means a last post lookup kept observing
	// rows changing underneath it. The outer operation should be retried.
	ErrConcurrentModification = errors.New("concurrent modification")

	// ErrInvalidTransition means a post was asked to move into the channel
	// it is already in.
	ErrInvalidTransition = errors.New("invalid transition")
)

// Classify maps a database error raised by engine-maintained columns to
// ErrInvariantViolation, keeping the original error in the chain. Check
// violations come from negative counts or positions; unique violations
// come from duplicate sort orders or positions, usually at commit.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrInvariantViolation) {
		return err
	}
	switch database.SQLState(err) {
	case database.CodeCheckViolation, database.CodeUniqueViolation:
		return fmt.Errorf("%w: %w", ErrInvariantViolation, err)
	}
	return err
}

// errorKind names the sentinel carried by err for metrics labels.
func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvariantViolation):
		return "invariant_violation"
	case errors.Is(err, ErrConcurrentModification):
		return "concurrent_modification"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	default:
		return "database"
	}
}

// observe records the outcome of one engine operation and returns err
// classified and wrapped with the operation name.
func observe(op string, err error) error {
	operationsTotal.WithLabelValues(op).Inc()
	if err == nil {
		return nil
	}
	err = Classify(err)
	errorsTotal.WithLabelValues(op, errorKind(err)).Inc()
	return fmt.Errorf("%s: %w", op, err)
}

func noRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
