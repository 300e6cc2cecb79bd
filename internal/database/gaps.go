// Pathwise - Learning Gap Analysis and Recommendation Engine
// Copyright 2026 Pathwise contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pathwise/pathwise

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/pathwise/pathwise/internal/gap"
	"github.com/pathwise/pathwise/internal/metrics"
)

// GapRecords loads the current gap records for a student, ordered by
// concept id.
func (db *DB) GapRecords(ctx context.Context, studentID string) ([]gap.GapRecord, error) {
	start := time.Now()
	defer metrics.ObserveDBQuery("select", "gap_records", start)

	rows, err := db.conn.QueryContext(ctx,
		`SELECT student_id, concept_id, severity, confidence, needs_more_data,
			updated_at, trend, has_trend, evidence
		 FROM gap_records WHERE student_id = ? ORDER BY concept_id`, studentID)
	if err != nil {
		return nil, fmt.Errorf("query gap records: %w", err)
	}
	defer closeRows(rows)

	var out []gap.GapRecord
	for rows.Next() {
		var rec gap.GapRecord
		var evidence string
		if err := rows.Scan(&rec.StudentID, &rec.ConceptID, &rec.Severity, &rec.Confidence,
			&rec.NeedsMoreData, &rec.UpdatedAt, &rec.Trend, &rec.HasTrend, &evidence); err != nil {
			return nil, fmt.Errorf("scan gap record: %w", err)
		}
		if evidence != "" && evidence != "null" {
			if err := json.Unmarshal([]byte(evidence), &rec.Evidence); err != nil {
				return nil, fmt.Errorf("unmarshal evidence refs: %w", err)
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ReplaceGapRecords atomically supersedes all of a student's gap records.
// Readers see either the old set or the new set, never a mix.
func (db *DB) ReplaceGapRecords(ctx context.Context, studentID string, records []gap.GapRecord) error {
	start := time.Now()
	defer metrics.ObserveDBQuery("replace", "gap_records", start)

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer rollbackQuietly(tx)

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM gap_records WHERE student_id = ?`, studentID); err != nil {
		return fmt.Errorf("delete prior gap records: %w", err)
	}

	for _, rec := range records {
		evidence, err := json.Marshal(rec.Evidence)
		if err != nil {
			return fmt.Errorf("marshal evidence refs: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO gap_records (student_id, concept_id, severity, confidence,
				needs_more_data, updated_at, trend, has_trend, evidence)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.StudentID, rec.ConceptID, rec.Severity, rec.Confidence,
			rec.NeedsMoreData, rec.UpdatedAt, rec.Trend, rec.HasTrend, string(evidence)); err != nil {
			return fmt.Errorf("insert gap record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit gap records: %w", err)
	}
	return nil
}

// EraseStudent removes all identifiable state for one student. The
// anonymized concept-difficulty aggregate, folded at ingest time, stays
// untouched.
func (db *DB) EraseStudent(ctx context.Context, studentID string) error {
	start := time.Now()
	defer metrics.ObserveDBQuery("delete", "student", start)

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer rollbackQuietly(tx)

	deletes := []string{
		`DELETE FROM evidence_accumulators WHERE student_id = ?`,
		`DELETE FROM evidence_refs WHERE student_id = ?`,
		`DELETE FROM gap_records WHERE student_id = ?`,
		`DELETE FROM recommendation_items WHERE student_id = ?`,
		`DELETE FROM learning_paths WHERE student_id = ?`,
		`DELETE FROM recommendation_feedback WHERE student_id = ?`,
		`DELETE FROM student_preferences WHERE student_id = ?`,
		`DELETE FROM unattributed_items WHERE student_id = ?`,
		`DELETE FROM performance_events WHERE student_id = ?`,
	}
	for _, q := range deletes {
		if _, err := tx.ExecContext(ctx, q, studentID); err != nil {
			return fmt.Errorf("erase student state: %s: %w", q, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit erasure: %w", err)
	}
	return nil
}
