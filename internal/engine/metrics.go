// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// operationsTotal counts engine operations by name
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forum_engine_operations_total",
		Help: "Total engine operations by name",
	}, []string{"operation"})

	// errorsTotal counts failed engine operations by name and error kind
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forum_engine_errors_total",
		Help: "Total engine errors by operation and kind",
	}, []string{"operation", "kind"})

	// rowsShifted tracks how many siblings a single bulk shift touched
	rowsShifted = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "forum_engine_rows_shifted",
		Help:    "Rows touched per bulk order or position shift",
		Buckets: []float64{0, 1, 5, 10, 50, 100, 500, 1000, 5000},
	}, []string{"kind"})

	// lastPostLookups counts last post fallback lookups by target and outcome
	lastPostLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forum_engine_last_post_lookups_total",
		Help: "Last post fallback lookups by target and outcome",
	}, []string{"target", "outcome"})
)
