// Pathwise - Learning Gap Analysis and Recommendation Engine
// Copyright 2026 Pathwise contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pathwise/pathwise

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pathwise/pathwise/internal/gap"
	"github.com/pathwise/pathwise/internal/metrics"
)

// Accumulator loads one evidence accumulator.
func (db *DB) Accumulator(ctx context.Context, studentID, conceptID string) (gap.Accumulator, bool, error) {
	start := time.Now()
	defer metrics.ObserveDBQuery("select", "evidence_accumulators", start)

	var acc gap.Accumulator
	err := db.conn.QueryRowContext(ctx,
		`SELECT student_id, concept_id, observations, success_sum, total_sum, last_updated
		 FROM evidence_accumulators WHERE student_id = ? AND concept_id = ?`,
		studentID, conceptID).
		Scan(&acc.StudentID, &acc.ConceptID, &acc.Observations, &acc.SuccessSum, &acc.TotalSum, &acc.LastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return gap.Accumulator{}, false, nil
	}
	if err != nil {
		return gap.Accumulator{}, false, fmt.Errorf("query accumulator: %w", err)
	}
	return acc, true, nil
}

// StudentAccumulators loads all accumulators for a student, ordered by
// concept id for deterministic recomputation.
func (db *DB) StudentAccumulators(ctx context.Context, studentID string) ([]gap.Accumulator, error) {
	start := time.Now()
	defer metrics.ObserveDBQuery("select", "evidence_accumulators", start)

	rows, err := db.conn.QueryContext(ctx,
		`SELECT student_id, concept_id, observations, success_sum, total_sum, last_updated
		 FROM evidence_accumulators WHERE student_id = ? ORDER BY concept_id`, studentID)
	if err != nil {
		return nil, fmt.Errorf("query accumulators: %w", err)
	}
	defer closeRows(rows)

	var out []gap.Accumulator
	for rows.Next() {
		var acc gap.Accumulator
		if err := rows.Scan(&acc.StudentID, &acc.ConceptID, &acc.Observations, &acc.SuccessSum, &acc.TotalSum, &acc.LastUpdated); err != nil {
			return nil, fmt.Errorf("scan accumulator: %w", err)
		}
		out = append(out, acc)
	}
	return out, rows.Err()
}

// PutAccumulator upserts an accumulator.
func (db *DB) PutAccumulator(ctx context.Context, acc gap.Accumulator) error {
	start := time.Now()
	defer metrics.ObserveDBQuery("upsert", "evidence_accumulators", start)

	return upsertAccumulator(ctx, db.conn, acc)
}

// upsertAccumulator writes one accumulator through db.conn or an open
// transaction (AppendEvent commits accumulators with the event row).
func upsertAccumulator(ctx context.Context, ex execer, acc gap.Accumulator) error {
	_, err := ex.ExecContext(ctx,
		`INSERT INTO evidence_accumulators (student_id, concept_id, observations, success_sum, total_sum, last_updated)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (student_id, concept_id) DO UPDATE SET
			observations = excluded.observations,
			success_sum = excluded.success_sum,
			total_sum = excluded.total_sum,
			last_updated = excluded.last_updated`,
		acc.StudentID, acc.ConceptID, acc.Observations, acc.SuccessSum, acc.TotalSum, acc.LastUpdated)
	if err != nil {
		return fmt.Errorf("upsert accumulator: %w", err)
	}
	return nil
}

// EvidenceRefs returns up to limit most recent evidence references for one
// (student, concept), oldest first.
func (db *DB) EvidenceRefs(ctx context.Context, studentID, conceptID string, limit int) ([]gap.EvidenceRef, error) {
	start := time.Now()
	defer metrics.ObserveDBQuery("select", "evidence_refs", start)

	rows, err := db.conn.QueryContext(ctx,
		`SELECT event_id, weight FROM (
			SELECT event_id, weight, event_ts
			FROM evidence_refs
			WHERE student_id = ? AND concept_id = ?
			ORDER BY event_ts DESC LIMIT ?
		 ) ORDER BY event_ts ASC`,
		studentID, conceptID, limit)
	if err != nil {
		return nil, fmt.Errorf("query evidence refs: %w", err)
	}
	defer closeRows(rows)

	var out []gap.EvidenceRef
	for rows.Next() {
		var ref gap.EvidenceRef
		if err := rows.Scan(&ref.EventID, &ref.Weight); err != nil {
			return nil, fmt.Errorf("scan evidence ref: %w", err)
		}
		out = append(out, ref)
	}
	return out, rows.Err()
}
