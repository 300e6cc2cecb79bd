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

	"github.com/pathwise/pathwise/internal/concept"
	"github.com/pathwise/pathwise/internal/metrics"
	"github.com/pathwise/pathwise/internal/recommend"
)

// Preferences loads a student's recommendation preferences.
func (db *DB) Preferences(ctx context.Context, studentID string) (recommend.Preferences, bool, error) {
	start := time.Now()
	defer metrics.ObserveDBQuery("select", "student_preferences", start)

	var prefs recommend.Preferences
	var types sql.NullString
	var style, difficulty sql.NullString
	err := db.conn.QueryRowContext(ctx,
		`SELECT student_id, preferred_types, style, difficulty, time_budget_minutes
		 FROM student_preferences WHERE student_id = ?`, studentID).
		Scan(&prefs.StudentID, &types, &style, &difficulty, &prefs.TimeBudgetMinutes)
	if errors.Is(err, sql.ErrNoRows) {
		return recommend.Preferences{}, false, nil
	}
	if err != nil {
		return recommend.Preferences{}, false, fmt.Errorf("query preferences: %w", err)
	}

	if types.Valid && types.String != "" && types.String != "null" {
		if err := json.Unmarshal([]byte(types.String), &prefs.PreferredTypes); err != nil {
			return recommend.Preferences{}, false, fmt.Errorf("unmarshal preferred types: %w", err)
		}
	}
	prefs.Style = recommend.LearningStyle(style.String)
	prefs.Difficulty = concept.Difficulty(difficulty.String)
	return prefs, true, nil
}

// PutPreferences upserts a student's preferences.
func (db *DB) PutPreferences(ctx context.Context, prefs recommend.Preferences) error {
	start := time.Now()
	defer metrics.ObserveDBQuery("upsert", "student_preferences", start)

	types, err := json.Marshal(prefs.PreferredTypes)
	if err != nil {
		return fmt.Errorf("marshal preferred types: %w", err)
	}
	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO student_preferences (student_id, preferred_types, style, difficulty, time_budget_minutes)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (student_id) DO UPDATE SET
			preferred_types = excluded.preferred_types,
			style = excluded.style,
			difficulty = excluded.difficulty,
			time_budget_minutes = excluded.time_budget_minutes`,
		prefs.StudentID, string(types), string(prefs.Style), string(prefs.Difficulty), prefs.TimeBudgetMinutes)
	if err != nil {
		return fmt.Errorf("upsert preferences: %w", err)
	}
	return nil
}

// RetireActiveItems marks a student's live recommendations retired. The
// rows stay for effectiveness analytics.
func (db *DB) RetireActiveItems(ctx context.Context, studentID string) error {
	start := time.Now()
	defer metrics.ObserveDBQuery("update", "recommendation_items", start)

	_, err := db.conn.ExecContext(ctx,
		`UPDATE recommendation_items SET state = ? WHERE student_id = ? AND state = ?`,
		string(recommend.StateRetired), studentID, string(recommend.StateActive))
	if err != nil {
		return fmt.Errorf("retire recommendations: %w", err)
	}
	return nil
}

// SavePath stores a learning path and its items in one transaction.
func (db *DB) SavePath(ctx context.Context, path recommend.Path) error {
	start := time.Now()
	defer metrics.ObserveDBQuery("insert", "learning_paths", start)

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer rollbackQuietly(tx)

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO learning_paths (id, student_id, graph_version, total_minutes, degraded, generated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		path.ID, path.StudentID, path.GraphVersion, path.TotalMinutes, path.Degraded, path.GeneratedAt); err != nil {
		return fmt.Errorf("insert learning path: %w", err)
	}

	for pos, it := range path.Items {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO recommendation_items (id, path_id, position, student_id, concept_id,
				gap_severity, gap_confidence, resource_id, resource_type, priority,
				prereq_satisfied, estimated_minutes, state, effectiveness_rating, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			it.ID, path.ID, pos, it.StudentID, it.ConceptID,
			it.GapSeverity, it.GapConfidence, it.ResourceID, string(it.ResourceType), it.Priority,
			it.PrerequisiteSatisfied, it.EstimatedMinutes, string(it.State), it.EffectivenessRating, it.CreatedAt); err != nil {
			return fmt.Errorf("insert recommendation item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit learning path: %w", err)
	}
	return nil
}

// LatestPath returns the most recently generated path for a student,
// including its items in stored order.
func (db *DB) LatestPath(ctx context.Context, studentID string) (recommend.Path, bool, error) {
	start := time.Now()
	defer metrics.ObserveDBQuery("select", "learning_paths", start)

	var path recommend.Path
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, student_id, graph_version, total_minutes, degraded, generated_at
		 FROM learning_paths WHERE student_id = ?
		 ORDER BY generated_at DESC LIMIT 1`, studentID).
		Scan(&path.ID, &path.StudentID, &path.GraphVersion, &path.TotalMinutes, &path.Degraded, &path.GeneratedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return recommend.Path{}, false, nil
	}
	if err != nil {
		return recommend.Path{}, false, fmt.Errorf("query latest path: %w", err)
	}

	items, err := db.pathItems(ctx, path.ID)
	if err != nil {
		return recommend.Path{}, false, err
	}
	path.Items = items
	return path, true, nil
}

// pathItems loads the items of one path in creation order.
func (db *DB) pathItems(ctx context.Context, pathID string) ([]recommend.Item, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, student_id, concept_id, gap_severity, gap_confidence,
			resource_id, resource_type, priority, prereq_satisfied,
			estimated_minutes, state, effectiveness_rating, created_at
		 FROM recommendation_items WHERE path_id = ? ORDER BY position`, pathID)
	if err != nil {
		return nil, fmt.Errorf("query path items: %w", err)
	}
	defer closeRows(rows)

	var out []recommend.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// RecommendationItem loads one recommendation by id.
func (db *DB) RecommendationItem(ctx context.Context, id string) (recommend.Item, bool, error) {
	start := time.Now()
	defer metrics.ObserveDBQuery("select", "recommendation_items", start)

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, student_id, concept_id, gap_severity, gap_confidence,
			resource_id, resource_type, priority, prereq_satisfied,
			estimated_minutes, state, effectiveness_rating, created_at
		 FROM recommendation_items WHERE id = ?`, id)
	if err != nil {
		return recommend.Item{}, false, fmt.Errorf("query recommendation: %w", err)
	}
	defer closeRows(rows)

	if !rows.Next() {
		return recommend.Item{}, false, rows.Err()
	}
	it, err := scanItem(rows)
	if err != nil {
		return recommend.Item{}, false, err
	}
	return it, true, nil
}

// scanItem scans one recommendation_items row.
func scanItem(rows *sql.Rows) (recommend.Item, error) {
	var it recommend.Item
	var resType, state string
	var rating sql.NullFloat64
	if err := rows.Scan(&it.ID, &it.StudentID, &it.ConceptID, &it.GapSeverity, &it.GapConfidence,
		&it.ResourceID, &resType, &it.Priority, &it.PrerequisiteSatisfied,
		&it.EstimatedMinutes, &state, &rating, &it.CreatedAt); err != nil {
		return recommend.Item{}, fmt.Errorf("scan recommendation item: %w", err)
	}
	it.ResourceType = recommend.ResourceType(resType)
	it.State = recommend.ItemState(state)
	if rating.Valid {
		v := rating.Float64
		it.EffectivenessRating = &v
	}
	return it, nil
}

// AppendFeedback stores one feedback report. Feedback is append-only.
func (db *DB) AppendFeedback(ctx context.Context, fb recommend.Feedback) error {
	start := time.Now()
	defer metrics.ObserveDBQuery("insert", "recommendation_feedback", start)

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO recommendation_feedback (recommendation_id, student_id, completed, rating, received_at)
		 VALUES (?, ?, ?, ?, ?)`,
		fb.RecommendationID, fb.StudentID, fb.Completed, fb.Rating, fb.ReceivedAt)
	if err != nil {
		return fmt.Errorf("insert feedback: %w", err)
	}
	return nil
}

// SetItemOutcome updates a recommendation's completion state and rating.
// Retired rows are immutable and are left untouched.
func (db *DB) SetItemOutcome(ctx context.Context, id string, state recommend.ItemState, rating *float64) error {
	start := time.Now()
	defer metrics.ObserveDBQuery("update", "recommendation_items", start)

	_, err := db.conn.ExecContext(ctx,
		`UPDATE recommendation_items SET state = ?, effectiveness_rating = ? WHERE id = ? AND state != ?`,
		string(state), rating, id, string(recommend.StateRetired))
	if err != nil {
		return fmt.Errorf("update recommendation outcome: %w", err)
	}
	return nil
}

// IneffectiveResources returns the resource ids a student completed and
// rated at or below the cutoff. Ratings on unfinished items carry no
// signal about the resource itself, so only completed rows count.
func (db *DB) IneffectiveResources(ctx context.Context, studentID string, cutoff float64) (map[string]struct{}, error) {
	start := time.Now()
	defer metrics.ObserveDBQuery("select", "recommendation_items", start)

	rows, err := db.conn.QueryContext(ctx,
		`SELECT DISTINCT resource_id FROM recommendation_items
		 WHERE student_id = ? AND state = ?
		 AND effectiveness_rating IS NOT NULL AND effectiveness_rating <= ?`,
		studentID, string(recommend.StateCompleted), cutoff)
	if err != nil {
		return nil, fmt.Errorf("query ineffective resources: %w", err)
	}
	defer closeRows(rows)

	out := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan resource id: %w", err)
		}
		out[id] = struct{}{}
	}
	return out, rows.Err()
}
