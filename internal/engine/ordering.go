// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package engine

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// OrderScope identifies a set of siblings sharing one dense 1..N sort
// order: all sections, or the forums of one section.
type OrderScope struct {
	table     string
	sectionID int64
}

// SectionScope is the scope of all sections.
func SectionScope() OrderScope {
	return OrderScope{table: "sections"}
}

// ForumScope is the scope of the forums in one section.
func ForumScope(sectionID int64) OrderScope {
	return OrderScope{table: "forums", sectionID: sectionID}
}

func (s OrderScope) String() string {
	if s.table == "forums" {
		return fmt.Sprintf("forums of section %d", s.sectionID)
	}
	return "sections"
}

// filter returns the scope predicate using placeholder $n, and its args.
func (s OrderScope) filter(n int) (string, []any) {
	if s.table == "forums" {
		return fmt.Sprintf("section_id = $%d", n), []any{s.sectionID}
	}
	return "TRUE", nil
}

// InsertBefore reserves a sort order for a new sibling. Without an anchor
// the new sibling goes last (count + 1). With an anchor it takes the
// anchor's order and every sibling at or after it moves up by one in a
// single statement. The caller then inserts the new row with the returned
// order in the same transaction.
func (e *Engine) InsertBefore(ctx context.Context, q sqlx.ExtContext, scope OrderScope, anchorID *int64) (int, error) {
	order, err := e.insertBefore(ctx, q, scope, anchorID)
	return order, observe("insert_before", err)
}

func (e *Engine) insertBefore(ctx context.Context, q sqlx.ExtContext, scope OrderScope, anchorID *int64) (int, error) {
	where, args := scope.filter(1)

	if anchorID == nil {
		var count int
		err := sqlx.GetContext(ctx, q, &count, `SELECT COUNT(*) FROM `+scope.table+` WHERE `+where, args...)
		if err != nil {
			return 0, fmt.Errorf("count %s: %w", scope, err)
		}
		return count + 1, nil
	}

	var order int
	err := sqlx.GetContext(ctx, q, &order,
		`SELECT sort_order FROM `+scope.table+` WHERE `+where+fmt.Sprintf(` AND id = $%d`, len(args)+1),
		append(args, *anchorID)...)
	if noRows(err) {
		return 0, fmt.Errorf("anchor %d in %s: %w", *anchorID, scope, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("find anchor: %w", err)
	}

	if err := e.shiftOrders(ctx, q, scope, "+", ">=", order); err != nil {
		return 0, err
	}
	return order, nil
}

// Remove closes the gap left by a deleted sibling: every sibling after
// order moves down by one in a single statement. Call it after the row has
// been deleted. An empty scope is not an error.
func (e *Engine) Remove(ctx context.Context, q sqlx.ExtContext, scope OrderScope, order int) error {
	return observe("remove", e.shiftOrders(ctx, q, scope, "-", ">", order))
}

func (e *Engine) shiftOrders(ctx context.Context, q sqlx.ExtContext, scope OrderScope, sign, cmp string, order int) error {
	where, args := scope.filter(2)
	res, err := q.ExecContext(ctx,
		`UPDATE `+scope.table+` SET sort_order = sort_order `+sign+` 1 WHERE sort_order `+cmp+` $1 AND `+where,
		append([]any{order}, args...)...)
	if err != nil {
		return fmt.Errorf("shift %s: %w", scope, err)
	}
	if n, err := res.RowsAffected(); err == nil {
		rowsShifted.WithLabelValues("order").Observe(float64(n))
	}
	return nil
}

// Compact renumbers a scope to 1..N keeping the current relative order,
// with ties broken by id. It repairs gaps and duplicates and is a no-op on
// an already dense scope.
func (e *Engine) Compact(ctx context.Context, q sqlx.ExtContext, scope OrderScope) error {
	where, args := scope.filter(1)
	_, err := q.ExecContext(ctx, `
		UPDATE `+scope.table+` AS s SET sort_order = r.rn
		FROM (
			SELECT id, ROW_NUMBER() OVER (ORDER BY sort_order, id) AS rn
			FROM `+scope.table+`
			WHERE `+where+`
		) r
		WHERE s.id = r.id AND s.sort_order <> r.rn
	`, args...)
	if err != nil {
		err = fmt.Errorf("compact %s: %w", scope, err)
	}
	return observe("compact", err)
}
