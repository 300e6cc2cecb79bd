// Pathwise - Learning Gap Analysis and Recommendation Engine
// Copyright 2026 Pathwise contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pathwise/pathwise

// Package recommend turns ranked learning gaps into learning paths:
// matching catalog resources to gaps under student preferences, sequencing
// them in prerequisite order within a time budget, and tracking feedback on
// the results.
//
// The package depends on the gap package for ranked input but owns no gap
// state; store interfaces keep it decoupled from the database layer.
package recommend

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/pathwise/pathwise/internal/concept"
	"github.com/pathwise/pathwise/internal/gap"
	"github.com/pathwise/pathwise/internal/logging"
)

// GapSource supplies ranked gaps and the active concept graph. Implemented
// by the gap engine.
type GapSource interface {
	RankGaps(ctx context.Context, studentID string, now time.Time) ([]gap.RankedGap, error)
	Graph() *concept.Graph
}

// PreferenceStore loads student recommendation preferences.
type PreferenceStore interface {
	// Preferences returns a student's preferences; ok is false when the
	// student has none recorded.
	Preferences(ctx context.Context, studentID string) (prefs Preferences, ok bool, err error)
}

// PathStore persists generated learning paths and their items.
type PathStore interface {
	// RetireActiveItems marks the student's live recommendations retired.
	// Retired items are kept for effectiveness analytics.
	RetireActiveItems(ctx context.Context, studentID string) error

	// SavePath stores a generated path and its items.
	SavePath(ctx context.Context, path Path) error

	// LatestPath returns the most recently generated path for a student.
	LatestPath(ctx context.Context, studentID string) (path Path, ok bool, err error)
}

// Store is the full persistence surface the recommendation engine needs.
type Store interface {
	PreferenceStore
	PathStore
	FeedbackStore
}

// Engine coordinates matching, path generation and feedback tracking.
// It is safe for concurrent use across students.
type Engine struct {
	cfg     *Config
	gaps    GapSource
	store   Store
	catalog *Catalog
	matcher *Matcher
	gen     *Generator
	tracker *Tracker
	logger  zerolog.Logger
}

// NewEngine creates a recommendation engine.
func NewEngine(cfg *Config, gaps GapSource, store Store, catalog *Catalog, sink CorrectiveSink) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("recommend engine config: %w", err)
	}
	cfg = cfg.Clone()
	return &Engine{
		cfg:     cfg,
		gaps:    gaps,
		store:   store,
		catalog: catalog,
		matcher: NewMatcher(cfg, catalog),
		gen:     NewGenerator(cfg),
		tracker: NewTracker(cfg, store, sink),
		logger:  logging.With().Str("component", "recommend_engine").Logger(),
	}, nil
}

// Catalog returns the resource catalog for inventory updates.
func (e *Engine) Catalog() *Catalog {
	return e.catalog
}

// SetNotifier attaches the recompute scheduler so recorded feedback marks
// the student's snapshot stale. Called once during startup, before the
// server accepts traffic.
func (e *Engine) SetNotifier(n RecomputeNotifier) {
	e.tracker.SetNotifier(n)
}

// ComputeRecommendations regenerates the learning path for a student from
// the current ranked gaps, superseding any prior recommendation set. The
// prior set's items are retired, not mutated; history is kept for
// effectiveness analytics.
func (e *Engine) ComputeRecommendations(ctx context.Context, studentID string, now time.Time) (Path, error) {
	ranked, err := e.gaps.RankGaps(ctx, studentID, now)
	if err != nil {
		return Path{}, fmt.Errorf("rank gaps: %w", err)
	}

	prefs, ok, err := e.store.Preferences(ctx, studentID)
	if err != nil {
		return Path{}, fmt.Errorf("load preferences: %w", err)
	}
	if !ok {
		prefs = Preferences{StudentID: studentID}
	}

	exclude, err := e.tracker.Ineffective(ctx, studentID)
	if err != nil {
		return Path{}, fmt.Errorf("load ineffective resources: %w", err)
	}

	perGap := make(map[string][]Resource, len(ranked))
	for _, rg := range ranked {
		if matched := e.matcher.Match(rg, prefs, exclude); len(matched) > 0 {
			perGap[rg.ConceptID] = matched
		}
	}

	fillers := e.fillerResources(ranked, prefs, exclude)
	path := e.gen.Generate(studentID, ranked, perGap, fillers, prefs, e.gaps.Graph(), now)

	if err := e.store.RetireActiveItems(ctx, studentID); err != nil {
		return Path{}, fmt.Errorf("retire prior recommendations: %w", err)
	}
	if err := e.store.SavePath(ctx, path); err != nil {
		return Path{}, fmt.Errorf("save path: %w", err)
	}

	e.logger.Debug().
		Str("student_id", studentID).
		Str("path_id", path.ID).
		Int("items", len(path.Items)).
		Int("total_minutes", path.TotalMinutes).
		Bool("degraded", path.Degraded).
		Msg("Learning path generated")
	return path, nil
}

// fillerResources selects review material for the direct prerequisites of
// low-confidence gaps. A gap flagged needs-more-data cannot be addressed
// head-on yet; refreshing its non-gapped prerequisites is still productive,
// so one resource per such prerequisite joins the path as filler ahead of
// the gap it supports.
func (e *Engine) fillerResources(ranked []gap.RankedGap, prefs Preferences, exclude map[string]struct{}) map[string][]Resource {
	gapped := make(map[string]struct{}, len(ranked))
	for _, rg := range ranked {
		gapped[rg.ConceptID] = struct{}{}
	}

	fillers := make(map[string][]Resource)
	used := make(map[string]struct{})
	for _, rg := range ranked {
		if !rg.NeedsMoreData {
			continue
		}
		for _, pre := range e.gaps.Graph().Prerequisites(rg.ConceptID) {
			if _, isGap := gapped[pre]; isGap {
				continue
			}
			if _, ok := used[pre]; ok {
				continue
			}
			review := gap.RankedGap{GapRecord: gap.GapRecord{StudentID: rg.StudentID, ConceptID: pre}}
			matched := e.matcher.Match(review, prefs, exclude)
			if len(matched) == 0 {
				continue
			}
			used[pre] = struct{}{}
			fillers[rg.ConceptID] = append(fillers[rg.ConceptID], matched[0])
		}
	}
	return fillers
}

// RecordFeedback stores completion/effectiveness feedback for one
// recommendation and feeds corrective evidence back into gap estimation.
func (e *Engine) RecordFeedback(ctx context.Context, recommendationID string, completed bool, rating *float64, now time.Time) error {
	return e.tracker.RecordFeedback(ctx, recommendationID, completed, rating, now)
}

// LatestPath returns the most recently generated path for a student.
func (e *Engine) LatestPath(ctx context.Context, studentID string) (Path, bool, error) {
	return e.store.LatestPath(ctx, studentID)
}
