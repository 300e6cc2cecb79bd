// Pathwise - Learning Gap Analysis and Recommendation Engine
// Copyright 2026 Pathwise contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pathwise/pathwise

package recommend

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pathwise/pathwise/internal/gap"
	"github.com/pathwise/pathwise/internal/logging"
	"github.com/pathwise/pathwise/internal/metrics"
)

// ErrRecommendationNotFound indicates an unknown recommendation id.
var ErrRecommendationNotFound = errors.New("recommendation not found")

// FeedbackStore is the persistence surface the tracker needs.
type FeedbackStore interface {
	// RecommendationItem loads one recommendation by id.
	RecommendationItem(ctx context.Context, id string) (Item, bool, error)

	// AppendFeedback stores one feedback report. Feedback is append-only.
	AppendFeedback(ctx context.Context, fb Feedback) error

	// SetItemOutcome updates a recommendation's completion state and
	// effectiveness rating.
	SetItemOutcome(ctx context.Context, id string, state ItemState, rating *float64) error

	// IneffectiveResources returns the resource ids this student rated at
	// or below the ineffectiveness cutoff.
	IneffectiveResources(ctx context.Context, studentID string, cutoff float64) (map[string]struct{}, error)
}

// CorrectiveSink receives feedback-derived evidence. Implemented by the gap
// engine.
type CorrectiveSink interface {
	ApplyCorrective(ctx context.Context, studentID string, ev gap.Evidence) error
}

// RecomputeNotifier schedules a background recompute cycle for a student.
// Implemented by the recompute service.
type RecomputeNotifier interface {
	MarkDirty(studentID string)
}

// Tracker records recommendation feedback and feeds it back into gap
// estimation as corrective evidence.
type Tracker struct {
	cfg      *Config
	store    FeedbackStore
	sink     CorrectiveSink
	notifier RecomputeNotifier
	logger   zerolog.Logger
}

// NewTracker creates a tracker. sink may be nil to disable corrective
// evidence.
func NewTracker(cfg *Config, store FeedbackStore, sink CorrectiveSink) *Tracker {
	return &Tracker{
		cfg:    cfg,
		store:  store,
		sink:   sink,
		logger: logging.With().Str("component", "recommend_tracker").Logger(),
	}
}

// SetNotifier wires the recompute scheduler. The scheduler is built after
// the engines during startup, so it is attached late.
func (t *Tracker) SetNotifier(n RecomputeNotifier) {
	t.notifier = n
}

// RecordFeedback stores one feedback report for a recommendation.
//
// A completion with an effectiveness rating also produces corrective
// evidence for the gap concept: a high rating is mastery evidence (the
// resource worked), a low rating keeps the gap open. Conflicting reports
// for one recommendation are all retained; reads resolve latest-wins.
func (t *Tracker) RecordFeedback(ctx context.Context, recommendationID string, completed bool, rating *float64, now time.Time) error {
	if rating != nil && (*rating < 0 || *rating > 1) {
		return fmt.Errorf("effectiveness rating must be in [0, 1], got %v", *rating)
	}

	item, ok, err := t.store.RecommendationItem(ctx, recommendationID)
	if err != nil {
		return fmt.Errorf("load recommendation: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrRecommendationNotFound, recommendationID)
	}

	fb := Feedback{
		RecommendationID: recommendationID,
		StudentID:        item.StudentID,
		Completed:        completed,
		Rating:           rating,
		ReceivedAt:       now,
	}
	if err := t.store.AppendFeedback(ctx, fb); err != nil {
		return fmt.Errorf("append feedback: %w", err)
	}

	state := item.State
	if completed {
		state = StateCompleted
	}
	if err := t.store.SetItemOutcome(ctx, recommendationID, state, rating); err != nil {
		return fmt.Errorf("update recommendation outcome: %w", err)
	}

	metrics.FeedbackRecorded.WithLabelValues(strconv.FormatBool(completed)).Inc()
	t.logger.Debug().
		Str("recommendation_id", recommendationID).
		Str("student_id", item.StudentID).
		Bool("completed", completed).
		Msg("Feedback recorded")

	if t.sink != nil && completed && rating != nil {
		if err := t.applyCorrective(ctx, item, *rating, now); err != nil {
			return err
		}
	}

	// Feedback changes the inputs of path generation (gap evidence, the
	// ineffective set, item states), so the student's snapshot is stale.
	if t.notifier != nil {
		t.notifier.MarkDirty(item.StudentID)
	}
	return nil
}

// applyCorrective synthesizes gap evidence from an effectiveness rating.
func (t *Tracker) applyCorrective(ctx context.Context, item Item, rating float64, now time.Time) error {
	dir := gap.DirectionMastery
	if rating < 0.5 {
		dir = gap.DirectionGap
	}
	ev := gap.Evidence{
		ConceptID: item.ConceptID,
		EventID:   "feedback-" + uuid.NewString(),
		Weight:    t.cfg.CorrectiveWeight,
		Quality:   rating,
		Direction: dir,
		Timestamp: now,
	}
	if err := t.sink.ApplyCorrective(ctx, item.StudentID, ev); err != nil {
		return fmt.Errorf("corrective evidence: %w", err)
	}
	return nil
}

// Ineffective returns the resource ids to exclude from future matching for
// a student.
func (t *Tracker) Ineffective(ctx context.Context, studentID string) (map[string]struct{}, error) {
	return t.store.IneffectiveResources(ctx, studentID, t.cfg.IneffectiveBelow)
}
