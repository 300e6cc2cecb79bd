// Pathwise - Learning Gap Analysis and Recommendation Engine
// Copyright 2026 Pathwise contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pathwise/pathwise

package gap

import "errors"

var (
	// ErrOutOfOrderEvidence indicates evidence older than the accumulator's
	// last update. Evidence must be applied in increasing timestamp order;
	// callers replaying history must sort first.
	ErrOutOfOrderEvidence = errors.New("evidence older than accumulator state")

	// ErrDuplicateEvent indicates an event id the store has already
	// ingested. Replays are dropped before they reach the accumulators.
	ErrDuplicateEvent = errors.New("duplicate event id")

	// ErrStudentNotFound indicates no state exists for the student.
	ErrStudentNotFound = errors.New("student not found")

	// ErrUnknownConcept indicates a concept id absent from the active graph.
	ErrUnknownConcept = errors.New("unknown concept")
)
