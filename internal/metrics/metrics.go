// Pathwise - Learning Gap Analysis and Recommendation Engine
// Copyright 2026 Pathwise contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pathwise/pathwise

// Package metrics provides Prometheus instrumentation for the analysis
// pipeline: event ingestion, recompute cycles, snapshot freshness, and the
// HTTP surface.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingestion metrics
	EventsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pathwise_events_ingested_total",
			Help: "Total number of performance events ingested",
		},
		[]string{"kind"}, // "quiz", "code"
	)

	EventsDuplicate = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pathwise_events_duplicate_total",
			Help: "Total number of performance events rejected as duplicates",
		},
	)

	UnmappedItems = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pathwise_unmapped_items_total",
			Help: "Total number of event items with no concept mapping (retained for audit)",
		},
	)

	// Recompute cycle metrics
	RecomputeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pathwise_recompute_duration_seconds",
			Help:    "Duration of per-student gap/recommendation recompute cycles",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	RecomputeErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pathwise_recompute_errors_total",
			Help: "Total number of failed per-student recompute cycles",
		},
		[]string{"stage"}, // "gaps", "recommendations", "snapshot"
	)

	RecomputeSuperseded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pathwise_recompute_superseded_total",
			Help: "Total number of queued recompute requests superseded by a newer one",
		},
	)

	GapRecordsEmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pathwise_gap_records_emitted_total",
			Help: "Total number of gap records emitted across recompute cycles",
		},
	)

	GraphInvalidConditions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pathwise_concept_graph_invalid_total",
			Help: "Total number of ConceptGraphInvalid conditions encountered",
		},
	)

	// Snapshot metrics
	SnapshotReads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pathwise_snapshot_reads_total",
			Help: "Total number of snapshot reads served",
		},
		[]string{"freshness"}, // "fresh", "stale", "missing"
	)

	SnapshotAge = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pathwise_snapshot_age_seconds",
			Help:    "Age of served snapshots at read time",
			Buckets: []float64{1, 10, 30, 60, 120, 300, 600, 1800, 3600},
		},
	)

	// Feedback metrics
	FeedbackRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pathwise_feedback_recorded_total",
			Help: "Total number of recommendation feedback records",
		},
		[]string{"completed"}, // "true", "false"
	)

	StudentsErased = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pathwise_students_erased_total",
			Help: "Total number of privacy erasure operations completed",
		},
	)

	// API metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pathwise_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pathwise_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "endpoint"},
	)

	// Database metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pathwise_db_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pathwise_db_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table"},
	)
)

// ObserveDBQuery records the duration of a database operation.
func ObserveDBQuery(operation, table string, start time.Time) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
}

// ObserveRecompute records the duration of a recompute cycle.
func ObserveRecompute(start time.Time) {
	RecomputeDuration.Observe(time.Since(start).Seconds())
}
