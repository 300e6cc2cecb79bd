// Pathwise - Learning Gap Analysis and Recommendation Engine
// Copyright 2026 Pathwise contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pathwise/pathwise

// Package snapshot keeps the most recently completed materialization of
// each student's gaps and learning path in BadgerDB.
//
// Dashboard reads always come from here and never trigger computation: a
// recompute cycle writes a whole snapshot when it finishes, and readers get
// the latest completed one, flagged stale when it is older than the
// freshness window.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/pathwise/pathwise/internal/config"
	"github.com/pathwise/pathwise/internal/gap"
	"github.com/pathwise/pathwise/internal/logging"
	"github.com/pathwise/pathwise/internal/metrics"
	"github.com/pathwise/pathwise/internal/recommend"
)

const studentKeyPrefix = "student:"

// ErrNotFound indicates no snapshot exists for the student.
var ErrNotFound = errors.New("snapshot not found")

// Snapshot is the immutable materialization of one student's state at the
// end of a recompute cycle.
type Snapshot struct {
	StudentID    string `json:"student_id"`
	GraphVersion string `json:"graph_version"`

	// Gaps is the full recomputed record set.
	Gaps []gap.GapRecord `json:"gaps"`

	// Ranked is the top-N ordering handed to the dashboard.
	Ranked []gap.RankedGap `json:"ranked"`

	// Path is the learning path generated in the same cycle.
	Path recommend.Path `json:"path"`

	// ComputedAt is when the producing cycle completed.
	ComputedAt time.Time `json:"computed_at"`
}

// Freshness classifies a snapshot read.
type Freshness string

const (
	// Fresh means the snapshot is within the freshness window.
	Fresh Freshness = "fresh"
	// Stale means the snapshot is served but older than the window.
	// An explicit, loggable condition, not an error.
	Stale Freshness = "stale"
)

// Store is the BadgerDB-backed snapshot store.
type Store struct {
	db     *badger.DB
	window time.Duration
}

// Open opens the store at the configured path.
func Open(cfg *config.SnapshotConfig) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Path).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}

	logging.Info().Str("path", cfg.Path).Dur("freshness_window", cfg.FreshnessWindow).
		Msg("Snapshot store opened")
	return &Store{db: db, window: cfg.FreshnessWindow}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put replaces the student's snapshot. The write is atomic: readers see
// the prior snapshot until the new one is fully stored.
func (s *Store) Put(_ context.Context, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(studentKeyPrefix+snap.StudentID), data)
	})
	if err != nil {
		return fmt.Errorf("store snapshot: %w", err)
	}
	return nil
}

// Get returns the latest completed snapshot for a student together with
// its freshness at the given read time. Serving a stale snapshot is normal
// operation; it is reported, logged and counted, never refused.
func (s *Store) Get(_ context.Context, studentID string, now time.Time) (Snapshot, Freshness, error) {
	var snap Snapshot
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(studentKeyPrefix + studentID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get snapshot: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &snap)
		})
	})
	if errors.Is(err, ErrNotFound) {
		metrics.SnapshotReads.WithLabelValues("missing").Inc()
		return Snapshot{}, "", err
	}
	if err != nil {
		return Snapshot{}, "", err
	}

	age := now.Sub(snap.ComputedAt)
	metrics.SnapshotAge.Observe(age.Seconds())

	if age > s.window {
		metrics.SnapshotReads.WithLabelValues("stale").Inc()
		logging.Warn().
			Str("student_id", studentID).
			Dur("age", age).
			Dur("window", s.window).
			Msg("Stale snapshot served")
		return snap, Stale, nil
	}
	metrics.SnapshotReads.WithLabelValues("fresh").Inc()
	return snap, Fresh, nil
}

// Delete removes a student's snapshot, used by privacy erasure.
func (s *Store) Delete(_ context.Context, studentID string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(studentKeyPrefix + studentID))
	})
	if err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

// RunGC performs one value-log garbage collection pass. Badger requires
// periodic GC from the application; ErrNoRewrite just means nothing to do.
func (s *Store) RunGC() {
	if err := s.db.RunValueLogGC(0.5); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
		logging.Warn().Err(err).Msg("Snapshot store GC failed")
	}
}
