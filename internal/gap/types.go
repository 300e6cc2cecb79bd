// Pathwise - Learning Gap Analysis and Recommendation Engine
// Copyright 2026 Pathwise contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pathwise/pathwise

package gap

import (
	"time"
)

// EventKind classifies a performance event by its source.
type EventKind string

const (
	// EventQuiz is a quiz submission with per-question outcomes.
	EventQuiz EventKind = "quiz"
	// EventCode is a code submission with structural metrics.
	EventCode EventKind = "code"
)

// CodeMetrics carries structural analysis results for a code submission item.
type CodeMetrics struct {
	// Complexity is the cyclomatic complexity of the submission.
	Complexity int `json:"complexity"`

	// TestCoverage is the fraction of lines covered by tests (0-1).
	TestCoverage float64 `json:"test_coverage"`

	// RuntimeMS is the measured execution time in milliseconds.
	RuntimeMS float64 `json:"runtime_ms"`

	// PassedTests and TotalTests summarize the test run.
	PassedTests int `json:"passed_tests"`
	TotalTests  int `json:"total_tests"`
}

// FailedTests returns the number of failing tests.
func (m CodeMetrics) FailedTests() int {
	if m.TotalTests < m.PassedTests {
		return 0
	}
	return m.TotalTests - m.PassedTests
}

// ItemOutcome is one graded item within a performance event.
type ItemOutcome struct {
	// ItemID identifies the quiz question or code task.
	ItemID string `json:"item_id"`

	// Quality is the correctness/quality signal in [0, 1].
	Quality float64 `json:"quality"`

	// Tags are raw free-form tags attached by the grader.
	Tags []string `json:"tags,omitempty"`

	// Code holds structural metrics for code submissions, nil otherwise.
	Code *CodeMetrics `json:"code,omitempty"`
}

// PerformanceEvent is one quiz or code submission. Events are immutable once
// stored; the engine only reads them. EventID is the stable identifier
// callers must de-duplicate on.
type PerformanceEvent struct {
	EventID   string        `json:"event_id"`
	StudentID string        `json:"student_id"`
	Kind      EventKind     `json:"kind"`
	Timestamp time.Time     `json:"timestamp"`
	Items     []ItemOutcome `json:"items"`
}

// Direction indicates which way a piece of evidence points.
type Direction int

const (
	// DirectionMastery marks positive evidence of concept mastery.
	DirectionMastery Direction = iota
	// DirectionGap marks evidence of a learning gap.
	DirectionGap
)

// String returns a human-readable name for the direction.
func (d Direction) String() string {
	switch d {
	case DirectionMastery:
		return "mastery"
	case DirectionGap:
		return "gap"
	default:
		return "unknown"
	}
}

// Evidence is one weighted, directional signal about a student's mastery of
// a concept, produced by the Mapper from a single item outcome.
type Evidence struct {
	ConceptID string    `json:"concept_id"`
	EventID   string    `json:"event_id"`
	Weight    float64   `json:"weight"`
	Quality   float64   `json:"quality"`
	Direction Direction `json:"direction"`
	Timestamp time.Time `json:"timestamp"`
}

// MappedEvent is the Mapper's output for one performance event.
type MappedEvent struct {
	EventID   string    `json:"event_id"`
	StudentID string    `json:"student_id"`
	Timestamp time.Time `json:"timestamp"`

	// Evidence lists the concept-attributed signals.
	Evidence []Evidence `json:"evidence"`

	// Unattributed lists items with no known concept mapping. They are
	// excluded from gap computation but retained for audit.
	Unattributed []ItemOutcome `json:"unattributed,omitempty"`
}

// Accumulator holds the running sufficient statistics for one
// (student, concept) pair. Owned exclusively by the Aggregator; mutated only
// through append operations, never rewritten in place except by privacy
// erasure.
type Accumulator struct {
	StudentID string `json:"student_id"`
	ConceptID string `json:"concept_id"`

	// Observations counts evidence applications.
	Observations int `json:"observations"`

	// SuccessSum is the decayed weighted-success sum.
	SuccessSum float64 `json:"success_sum"`

	// TotalSum is the decayed weighted-total sum.
	TotalSum float64 `json:"total_sum"`

	// LastUpdated is the timestamp of the most recent applied evidence.
	LastUpdated time.Time `json:"last_updated"`
}

// EvidenceRef points a gap record at a supporting event.
type EvidenceRef struct {
	EventID string  `json:"event_id"`
	Weight  float64 `json:"weight"`
}

// GapRecord is the estimated weakness in a student's mastery of one concept.
// One logical record exists per (student, concept); a recompute supersedes
// the prior record, whose severity becomes the trend input.
type GapRecord struct {
	StudentID string `json:"student_id"`
	ConceptID string `json:"concept_id"`

	// Severity is the estimated gap strength: 0 (no gap) to 1 (total gap).
	Severity float64 `json:"severity"`

	// Confidence is the estimated reliability of Severity in [0, 1].
	Confidence float64 `json:"confidence"`

	// NeedsMoreData flags records whose confidence is below the floor.
	// Such records are emitted, not suppressed, so callers can request
	// additional targeted assessment instead of acting on the estimate.
	NeedsMoreData bool `json:"needs_more_data"`

	// UpdatedAt is when this record was computed.
	UpdatedAt time.Time `json:"updated_at"`

	// Evidence references the events supporting this estimate.
	Evidence []EvidenceRef `json:"evidence,omitempty"`

	// Trend is previous severity minus new severity (positive = improving).
	// Valid only when HasTrend is true (absent on first computation).
	Trend    float64 `json:"trend"`
	HasTrend bool    `json:"has_trend"`
}

// Priority is the ranker's primary key: severity weighted by confidence.
// It suppresses high-severity-but-low-confidence noise.
func (r GapRecord) Priority() float64 {
	return r.Severity * r.Confidence
}

// Estimator converts an accumulator snapshot into a gap record.
//
// Implementations must be pure functions of their inputs so any statistical
// or learned model satisfying the contract (severity, confidence, trend) can
// be substituted without changing the rest of the pipeline.
type Estimator interface {
	// Name returns the estimator identifier (e.g., "reference").
	Name() string

	// Estimate produces a gap record from an accumulator snapshot.
	// prior is the superseded record for the same (student, concept),
	// nil on first computation.
	Estimate(acc Accumulator, prior *GapRecord, now time.Time) GapRecord
}
