// Pathwise - Learning Gap Analysis and Recommendation Engine
// Copyright 2026 Pathwise contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pathwise/pathwise

// Package services contains the suture.Service implementations that make up
// the supervised process: background recomputation, the event feed router,
// the HTTP server, and snapshot store maintenance.
package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/pathwise/pathwise/internal/concept"
	"github.com/pathwise/pathwise/internal/config"
	"github.com/pathwise/pathwise/internal/gap"
	"github.com/pathwise/pathwise/internal/logging"
	"github.com/pathwise/pathwise/internal/metrics"
	"github.com/pathwise/pathwise/internal/recommend"
	"github.com/pathwise/pathwise/internal/snapshot"
)

// GapPipeline is the gap engine surface the recompute service drives.
type GapPipeline interface {
	ComputeGaps(ctx context.Context, studentID string, now time.Time) ([]gap.GapRecord, error)
	RankGaps(ctx context.Context, studentID string, now time.Time) ([]gap.RankedGap, error)
	Graph() *concept.Graph
}

// Recommender regenerates a student's learning path.
type Recommender interface {
	ComputeRecommendations(ctx context.Context, studentID string, now time.Time) (recommend.Path, error)
}

// SnapshotWriter persists completed materializations.
type SnapshotWriter interface {
	Put(ctx context.Context, snap snapshot.Snapshot) error
}

// RecomputeService runs per-student recompute cycles in the background.
//
// Students are marked dirty by the ingest handler and the API; marks are
// debounced so a burst of events for one student triggers a single cycle.
// A bounded worker pool drains the dirty set, paced by a token-bucket rate
// limiter so a cohort-wide burst (an exam submission window) cannot starve
// the database.
//
// It implements both suture.Service and ingest.Notifier.
type RecomputeService struct {
	cfg     *config.RecomputeConfig
	gaps    GapPipeline
	recs    Recommender
	snaps   SnapshotWriter
	limiter *rate.Limiter
	logger  zerolog.Logger

	// now is injectable for tests.
	now func() time.Time

	mu    sync.Mutex
	dirty map[string]time.Time
}

// NewRecomputeService creates the recompute service.
func NewRecomputeService(cfg *config.RecomputeConfig, gaps GapPipeline, recs Recommender, snaps SnapshotWriter) *RecomputeService {
	return &RecomputeService{
		cfg:     cfg,
		gaps:    gaps,
		recs:    recs,
		snaps:   snaps,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		logger:  logging.With().Str("component", "recompute").Logger(),
		now:     time.Now,
		dirty:   make(map[string]time.Time),
	}
}

// MarkDirty schedules a recompute for the student. Repeated marks within
// the debounce window coalesce into a single cycle; the superseded marks
// are counted, not queued.
func (s *RecomputeService) MarkDirty(studentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, pending := s.dirty[studentID]; pending {
		metrics.RecomputeSuperseded.Inc()
	}
	s.dirty[studentID] = s.now()
}

// Serve implements suture.Service. It dispatches due students to the
// worker pool until the context is canceled.
func (s *RecomputeService) Serve(ctx context.Context) error {
	s.logger.Info().
		Int("workers", s.cfg.Workers).
		Dur("debounce", s.cfg.Debounce).
		Float64("rate_per_second", s.cfg.RatePerSecond).
		Msg("Recompute service started")

	work := make(chan string, s.cfg.QueueSize)
	var wg sync.WaitGroup
	for i := 0; i < s.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.worker(ctx, work)
		}()
	}

	ticker := time.NewTicker(s.pollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			close(work)
			wg.Wait()
			s.logger.Info().Msg("Recompute service stopped")
			return ctx.Err()
		case <-ticker.C:
			for _, studentID := range s.takeDue() {
				select {
				case work <- studentID:
				default:
					// Queue full. Re-mark so the student is retried on
					// a later tick instead of being lost.
					s.logger.Warn().Str("student_id", studentID).
						Msg("Recompute queue full, deferring")
					s.MarkDirty(studentID)
				}
			}
		}
	}
}

// pollInterval is how often the dirty set is scanned for due students.
func (s *RecomputeService) pollInterval() time.Duration {
	interval := s.cfg.Debounce / 2
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	return interval
}

// takeDue removes and returns the students whose debounce window elapsed,
// in stable order.
func (s *RecomputeService) takeDue() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var due []string
	for studentID, markedAt := range s.dirty {
		if now.Sub(markedAt) >= s.cfg.Debounce {
			due = append(due, studentID)
			delete(s.dirty, studentID)
		}
	}
	sort.Strings(due)
	return due
}

func (s *RecomputeService) worker(ctx context.Context, work <-chan string) {
	for studentID := range work {
		if err := s.limiter.Wait(ctx); err != nil {
			return
		}
		s.recompute(ctx, studentID)
	}
}

// recompute runs one full cycle for a student: gap records, ranking, the
// learning path, and the snapshot that makes the results visible to reads.
func (s *RecomputeService) recompute(ctx context.Context, studentID string) {
	start := time.Now()
	now := s.now()

	records, err := s.gaps.ComputeGaps(ctx, studentID, now)
	if err != nil {
		metrics.RecomputeErrors.WithLabelValues("gaps").Inc()
		s.logger.Error().Err(err).Str("student_id", studentID).Msg("Gap computation failed")
		return
	}

	ranked, err := s.gaps.RankGaps(ctx, studentID, now)
	if err != nil {
		metrics.RecomputeErrors.WithLabelValues("gaps").Inc()
		s.logger.Error().Err(err).Str("student_id", studentID).Msg("Gap ranking failed")
		return
	}

	path, err := s.recs.ComputeRecommendations(ctx, studentID, now)
	if err != nil {
		metrics.RecomputeErrors.WithLabelValues("recommendations").Inc()
		s.logger.Error().Err(err).Str("student_id", studentID).Msg("Recommendation generation failed")
		return
	}

	snap := snapshot.Snapshot{
		StudentID:    studentID,
		GraphVersion: s.gaps.Graph().Version(),
		Gaps:         records,
		Ranked:       ranked,
		Path:         path,
		ComputedAt:   now,
	}
	if err := s.snaps.Put(ctx, snap); err != nil {
		metrics.RecomputeErrors.WithLabelValues("snapshot").Inc()
		s.logger.Error().Err(err).Str("student_id", studentID).Msg("Snapshot write failed")
		return
	}

	metrics.ObserveRecompute(start)
	s.logger.Debug().
		Str("student_id", studentID).
		Int("gaps", len(records)).
		Int("path_items", len(path.Items)).
		Dur("duration", time.Since(start)).
		Msg("Recompute cycle completed")
}
