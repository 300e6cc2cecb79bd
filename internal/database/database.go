// Pathwise - Learning Gap Analysis and Recommendation Engine
// Copyright 2026 Pathwise contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pathwise/pathwise

// Package database implements the durable store on DuckDB: performance
// events and their audit trail, evidence accumulators, gap records,
// recommendation history and the anonymized concept-difficulty aggregate.
//
// The database package is the single writer for all durable state. The gap
// and recommend engines reach it through their store interfaces, which *DB
// satisfies.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/pathwise/pathwise/internal/config"
	"github.com/pathwise/pathwise/internal/logging"
)

// DB wraps the DuckDB connection and provides data access methods.
type DB struct {
	conn *sql.DB
	cfg  *config.DatabaseConfig
}

// New opens the database and initializes the schema.
func New(cfg *config.DatabaseConfig) (*DB, error) {
	threads := cfg.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}

	// The data directory may not exist on first start.
	if dir := filepath.Dir(cfg.Path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", dir, err)
		}
	}

	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s",
		cfg.Path, threads, cfg.MaxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// DuckDB is embedded; a single connection avoids write contention.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	db := &DB{conn: conn, cfg: cfg}
	if err := db.initSchema(context.Background()); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	logging.Info().Str("path", cfg.Path).Int("threads", threads).
		Msg("Database opened")
	return db, nil
}

// Close closes the underlying connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping verifies the connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

func closeQuietly(conn *sql.DB) {
	if err := conn.Close(); err != nil {
		logging.Warn().Err(err).Msg("Failed to close database connection")
	}
}

// initSchema creates all tables and indexes if missing.
func (db *DB) initSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	for _, query := range schemaQueries() {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("execute schema query: %s: %w", query, err)
		}
	}
	return nil
}

// schemaQueries returns the table and index creation statements.
func schemaQueries() []string {
	return []string{
		// Raw performance events. The primary key on event_id is the
		// de-duplication point for the whole pipeline.
		`CREATE TABLE IF NOT EXISTS performance_events (
			event_id TEXT PRIMARY KEY,
			student_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			event_ts TIMESTAMP NOT NULL,
			payload JSON NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		// Items that mapped to no concept, retained for curriculum audit.
		`CREATE TABLE IF NOT EXISTS unattributed_items (
			event_id TEXT NOT NULL,
			student_id TEXT NOT NULL,
			item_id TEXT NOT NULL,
			quality DOUBLE NOT NULL,
			tags JSON
		)`,

		// Per-evidence references linking gap records back to events.
		`CREATE TABLE IF NOT EXISTS evidence_refs (
			student_id TEXT NOT NULL,
			concept_id TEXT NOT NULL,
			event_id TEXT NOT NULL,
			weight DOUBLE NOT NULL,
			event_ts TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_evidence_refs_student
			ON evidence_refs (student_id, concept_id, event_ts)`,

		// Running sufficient statistics per (student, concept).
		`CREATE TABLE IF NOT EXISTS evidence_accumulators (
			student_id TEXT NOT NULL,
			concept_id TEXT NOT NULL,
			observations INTEGER NOT NULL,
			success_sum DOUBLE NOT NULL,
			total_sum DOUBLE NOT NULL,
			last_updated TIMESTAMP NOT NULL,
			PRIMARY KEY (student_id, concept_id)
		)`,

		// Current gap records; replaced wholesale per student on recompute.
		`CREATE TABLE IF NOT EXISTS gap_records (
			student_id TEXT NOT NULL,
			concept_id TEXT NOT NULL,
			severity DOUBLE NOT NULL,
			confidence DOUBLE NOT NULL,
			needs_more_data BOOLEAN NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			trend DOUBLE NOT NULL,
			has_trend BOOLEAN NOT NULL,
			evidence JSON,
			PRIMARY KEY (student_id, concept_id)
		)`,

		// Learning paths and their items. Items are retired, never
		// deleted, so effectiveness analytics keep full history.
		`CREATE TABLE IF NOT EXISTS learning_paths (
			id TEXT PRIMARY KEY,
			student_id TEXT NOT NULL,
			graph_version TEXT NOT NULL,
			total_minutes INTEGER NOT NULL,
			degraded BOOLEAN NOT NULL,
			generated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS recommendation_items (
			id TEXT PRIMARY KEY,
			path_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			student_id TEXT NOT NULL,
			concept_id TEXT NOT NULL,
			gap_severity DOUBLE NOT NULL,
			gap_confidence DOUBLE NOT NULL,
			resource_id TEXT NOT NULL,
			resource_type TEXT NOT NULL,
			priority DOUBLE NOT NULL,
			prereq_satisfied BOOLEAN NOT NULL,
			estimated_minutes INTEGER NOT NULL,
			state TEXT NOT NULL,
			effectiveness_rating DOUBLE,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_rec_items_student
			ON recommendation_items (student_id, state)`,

		// Append-only feedback reports.
		`CREATE TABLE IF NOT EXISTS recommendation_feedback (
			recommendation_id TEXT NOT NULL,
			student_id TEXT NOT NULL,
			completed BOOLEAN NOT NULL,
			rating DOUBLE,
			received_at TIMESTAMP NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS student_preferences (
			student_id TEXT PRIMARY KEY,
			preferred_types JSON,
			style TEXT,
			difficulty TEXT,
			time_budget_minutes INTEGER NOT NULL DEFAULT 0
		)`,

		// Anonymized per-concept difficulty signals. Fed at ingest time,
		// never touched by student erasure.
		`CREATE TABLE IF NOT EXISTS concept_difficulty_agg (
			concept_id TEXT PRIMARY KEY,
			observations BIGINT NOT NULL,
			success_sum DOUBLE NOT NULL,
			total_sum DOUBLE NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
	}
}
