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

	"github.com/goccy/go-json"

	"github.com/pathwise/pathwise/internal/gap"
	"github.com/pathwise/pathwise/internal/metrics"
)

// AppendEvent stores one performance event, its mapping output and the
// updated evidence accumulators in a single transaction, so an event can
// never be marked ingested with its evidence half-applied. Duplicate event
// ids return gap.ErrDuplicateEvent without writing anything.
//
// The anonymized concept-difficulty aggregate is updated here, at ingest
// time, so later student erasure cannot disturb it.
func (db *DB) AppendEvent(ctx context.Context, event gap.PerformanceEvent, mapped gap.MappedEvent, accs []gap.Accumulator) error {
	start := time.Now()
	defer metrics.ObserveDBQuery("append", "performance_events", start)

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer rollbackQuietly(tx)

	res, err := tx.ExecContext(ctx,
		`INSERT INTO performance_events (event_id, student_id, kind, event_ts, payload)
		 VALUES (?, ?, ?, ?, ?) ON CONFLICT DO NOTHING`,
		event.EventID, event.StudentID, string(event.Kind), event.Timestamp, string(payload))
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", gap.ErrDuplicateEvent, event.EventID)
	}

	for _, item := range mapped.Unattributed {
		tags, err := json.Marshal(item.Tags)
		if err != nil {
			return fmt.Errorf("marshal item tags: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO unattributed_items (event_id, student_id, item_id, quality, tags)
			 VALUES (?, ?, ?, ?, ?)`,
			event.EventID, event.StudentID, item.ItemID, item.Quality, string(tags)); err != nil {
			return fmt.Errorf("insert unattributed item: %w", err)
		}
	}

	for _, ev := range mapped.Evidence {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO evidence_refs (student_id, concept_id, event_id, weight, event_ts)
			 VALUES (?, ?, ?, ?, ?)`,
			event.StudentID, ev.ConceptID, ev.EventID, ev.Weight, ev.Timestamp); err != nil {
			return fmt.Errorf("insert evidence ref: %w", err)
		}
		if err := upsertDifficultyAgg(ctx, tx, ev); err != nil {
			return err
		}
	}

	for _, acc := range accs {
		if err := upsertAccumulator(ctx, tx, acc); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit event: %w", err)
	}
	return nil
}

// EventSeen reports whether an event id has already been ingested.
func (db *DB) EventSeen(ctx context.Context, eventID string) (bool, error) {
	start := time.Now()
	defer metrics.ObserveDBQuery("select", "performance_events", start)

	var one int
	err := db.conn.QueryRowContext(ctx,
		`SELECT 1 FROM performance_events WHERE event_id = ?`, eventID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query event id: %w", err)
	}
	return true, nil
}

// upsertDifficultyAgg folds one evidence signal into the anonymized
// per-concept aggregate.
func upsertDifficultyAgg(ctx context.Context, tx execer, ev gap.Evidence) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO concept_difficulty_agg (concept_id, observations, success_sum, total_sum, updated_at)
		 VALUES (?, 1, ?, ?, ?)
		 ON CONFLICT (concept_id) DO UPDATE SET
			observations = concept_difficulty_agg.observations + 1,
			success_sum = concept_difficulty_agg.success_sum + excluded.success_sum,
			total_sum = concept_difficulty_agg.total_sum + excluded.total_sum,
			updated_at = excluded.updated_at`,
		ev.ConceptID, ev.Weight*ev.Quality, ev.Weight, ev.Timestamp)
	if err != nil {
		return fmt.Errorf("update concept difficulty aggregate: %w", err)
	}
	return nil
}

// ConceptDifficulty is one row of the anonymized difficulty aggregate.
type ConceptDifficulty struct {
	ConceptID    string
	Observations int64
	SuccessSum   float64
	TotalSum     float64
	UpdatedAt    time.Time
}

// DifficultyRate returns the aggregate failure rate, or 0 with no data.
func (c ConceptDifficulty) DifficultyRate() float64 {
	if c.TotalSum <= 0 {
		return 0
	}
	return 1 - c.SuccessSum/c.TotalSum
}

// ConceptDifficulties returns the anonymized aggregate for all concepts,
// ordered by concept id.
func (db *DB) ConceptDifficulties(ctx context.Context) ([]ConceptDifficulty, error) {
	start := time.Now()
	defer metrics.ObserveDBQuery("select", "concept_difficulty_agg", start)

	rows, err := db.conn.QueryContext(ctx,
		`SELECT concept_id, observations, success_sum, total_sum, updated_at
		 FROM concept_difficulty_agg ORDER BY concept_id`)
	if err != nil {
		return nil, fmt.Errorf("query concept difficulties: %w", err)
	}
	defer closeRows(rows)

	var out []ConceptDifficulty
	for rows.Next() {
		var c ConceptDifficulty
		if err := rows.Scan(&c.ConceptID, &c.Observations, &c.SuccessSum, &c.TotalSum, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan concept difficulty: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UnattributedItems returns the audit trail of unmapped items, newest
// events first, capped at limit.
func (db *DB) UnattributedItems(ctx context.Context, limit int) ([]gap.ItemOutcome, error) {
	start := time.Now()
	defer metrics.ObserveDBQuery("select", "unattributed_items", start)

	rows, err := db.conn.QueryContext(ctx,
		`SELECT u.item_id, u.quality, u.tags
		 FROM unattributed_items u
		 JOIN performance_events e ON e.event_id = u.event_id
		 ORDER BY e.event_ts DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query unattributed items: %w", err)
	}
	defer closeRows(rows)

	var out []gap.ItemOutcome
	for rows.Next() {
		var item gap.ItemOutcome
		var tags string
		if err := rows.Scan(&item.ItemID, &item.Quality, &tags); err != nil {
			return nil, fmt.Errorf("scan unattributed item: %w", err)
		}
		if tags != "" && tags != "null" {
			if err := json.Unmarshal([]byte(tags), &item.Tags); err != nil {
				return nil, fmt.Errorf("unmarshal item tags: %w", err)
			}
		}
		out = append(out, item)
	}
	return out, rows.Err()
}
