// Pathwise - Learning Gap Analysis and Recommendation Engine
// Copyright 2026 Pathwise contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pathwise/pathwise

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pathwise/pathwise/internal/database"
	"github.com/pathwise/pathwise/internal/gap"
	"github.com/pathwise/pathwise/internal/recommend"
	"github.com/pathwise/pathwise/internal/snapshot"
)

// EventPublisher accepts performance events for asynchronous processing.
// Implemented by the ingest feed.
type EventPublisher interface {
	Publish(ctx context.Context, event gap.PerformanceEvent) error
}

// RecomputeTrigger schedules a recompute cycle for a student. Implemented
// by the recompute service.
type RecomputeTrigger interface {
	MarkDirty(studentID string)
}

// SnapshotReader serves materialized per-student snapshots. Implemented by
// the snapshot store.
type SnapshotReader interface {
	Get(ctx context.Context, studentID string, now time.Time) (snapshot.Snapshot, snapshot.Freshness, error)
	Delete(ctx context.Context, studentID string) error
}

// GapService is the gap engine surface the API needs.
type GapService interface {
	EraseStudent(ctx context.Context, studentID string) error
}

// RecommendService is the recommendation engine surface the API needs.
type RecommendService interface {
	RecordFeedback(ctx context.Context, recommendationID string, completed bool, rating *float64, now time.Time) error
	LatestPath(ctx context.Context, studentID string) (recommend.Path, bool, error)
}

// DataStore is the direct database surface the API needs: preferences,
// health probing and the audit queries.
type DataStore interface {
	Ping(ctx context.Context) error
	Preferences(ctx context.Context, studentID string) (recommend.Preferences, bool, error)
	PutPreferences(ctx context.Context, prefs recommend.Preferences) error
	UnattributedItems(ctx context.Context, limit int) ([]gap.ItemOutcome, error)
	ConceptDifficulties(ctx context.Context) ([]database.ConceptDifficulty, error)
}

// Handler holds the HTTP handlers and their dependencies.
type Handler struct {
	feed      EventPublisher
	recompute RecomputeTrigger
	snapshots SnapshotReader
	gaps      GapService
	recs      RecommendService
	store     DataStore

	// now is injectable for tests.
	now func() time.Time
}

// NewHandler creates the API handler set.
func NewHandler(feed EventPublisher, recompute RecomputeTrigger, snapshots SnapshotReader, gaps GapService, recs RecommendService, store DataStore) *Handler {
	return &Handler{
		feed:      feed,
		recompute: recompute,
		snapshots: snapshots,
		gaps:      gaps,
		recs:      recs,
		store:     store,
		now:       time.Now,
	}
}

// HealthLive reports process liveness.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]string{"status": "alive"})
}

// HealthReady reports readiness: the database must answer a ping.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		rw.ServiceUnavailable("database not ready")
		return
	}
	rw.Success(map[string]string{"status": "ready"})
}

// Health reports overall service health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "up"
	status := "healthy"
	if err := h.store.Ping(ctx); err != nil {
		dbStatus = "down"
		status = "degraded"
	}
	rw.Success(map[string]interface{}{
		"status": status,
		"components": map[string]string{
			"database": dbStatus,
		},
	})
}

// IngestEvent accepts one performance event and publishes it to the feed.
// Processing is asynchronous; 202 means accepted, not applied. Replays of
// an already-stored event id are dropped downstream without effect.
func (h *Handler) IngestEvent(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req ingestEventRequest
	if fields, err := decodeRequest(r, &req); err != nil {
		if fields != nil {
			rw.ValidationError("invalid event payload", fields)
			return
		}
		rw.BadRequest("malformed JSON body")
		return
	}

	if err := h.feed.Publish(r.Context(), req.toEvent()); err != nil {
		rw.StoreError(err)
		return
	}
	rw.Accepted(map[string]string{"event_id": req.EventID})
}

// StudentGaps serves the student's latest gap snapshot. The read never
// triggers computation; a stale snapshot is served with its freshness
// flagged so the dashboard can indicate it.
func (h *Handler) StudentGaps(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	studentID := chi.URLParam(r, "id")

	snap, freshness, err := h.snapshots.Get(r.Context(), studentID, h.now())
	if errors.Is(err, snapshot.ErrNotFound) {
		rw.NotFound("no snapshot for student")
		return
	}
	if err != nil {
		rw.StoreError(err)
		return
	}

	rw.Success(map[string]interface{}{
		"student_id":    snap.StudentID,
		"graph_version": snap.GraphVersion,
		"computed_at":   snap.ComputedAt,
		"freshness":     freshness,
		"gaps":          snap.Gaps,
		"ranked":        snap.Ranked,
	})
}

// StudentPath serves the student's latest learning path. The snapshot is
// preferred; if none exists yet the persisted path is served directly.
func (h *Handler) StudentPath(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	studentID := chi.URLParam(r, "id")

	snap, freshness, err := h.snapshots.Get(r.Context(), studentID, h.now())
	if err == nil {
		rw.Success(map[string]interface{}{
			"freshness": freshness,
			"path":      snap.Path,
		})
		return
	}
	if !errors.Is(err, snapshot.ErrNotFound) {
		rw.StoreError(err)
		return
	}

	path, ok, err := h.recs.LatestPath(r.Context(), studentID)
	if err != nil {
		rw.StoreError(err)
		return
	}
	if !ok {
		rw.NotFound("no learning path for student")
		return
	}
	rw.Success(map[string]interface{}{
		"freshness": snapshot.Stale,
		"path":      path,
	})
}

// RecomputeStudent schedules a recompute cycle for the student. The cycle
// runs in the background; the refreshed snapshot appears when it finishes.
func (h *Handler) RecomputeStudent(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "id")
	h.recompute.MarkDirty(studentID)
	NewResponseWriter(w, r).Accepted(map[string]string{"student_id": studentID})
}

// GetPreferences serves the student's recommendation preferences.
func (h *Handler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	studentID := chi.URLParam(r, "id")

	prefs, ok, err := h.store.Preferences(r.Context(), studentID)
	if err != nil {
		rw.StoreError(err)
		return
	}
	if !ok {
		rw.NotFound("no preferences for student")
		return
	}
	rw.Success(prefs)
}

// PutPreferences stores the student's recommendation preferences and
// schedules a recompute so the path reflects them.
func (h *Handler) PutPreferences(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	studentID := chi.URLParam(r, "id")

	var req preferencesRequest
	if fields, err := decodeRequest(r, &req); err != nil {
		if fields != nil {
			rw.ValidationError("invalid preferences payload", fields)
			return
		}
		rw.BadRequest("malformed JSON body")
		return
	}

	if err := h.store.PutPreferences(r.Context(), req.toPreferences(studentID)); err != nil {
		rw.StoreError(err)
		return
	}
	h.recompute.MarkDirty(studentID)
	rw.Success(map[string]string{"student_id": studentID})
}

// RecordFeedback stores completion/effectiveness feedback for one
// recommendation. The corrective evidence it produces reaches the gap
// records on the next recompute cycle.
func (h *Handler) RecordFeedback(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	recommendationID := chi.URLParam(r, "id")

	var req feedbackRequest
	if fields, err := decodeRequest(r, &req); err != nil {
		if fields != nil {
			rw.ValidationError("invalid feedback payload", fields)
			return
		}
		rw.BadRequest("malformed JSON body")
		return
	}

	err := h.recs.RecordFeedback(r.Context(), recommendationID, req.Completed, req.Rating, h.now())
	if errors.Is(err, recommend.ErrRecommendationNotFound) {
		rw.NotFound("unknown recommendation")
		return
	}
	if err != nil {
		rw.StoreError(err)
		return
	}
	rw.Success(map[string]string{"recommendation_id": recommendationID})
}

// EraseStudent removes all identifiable state for a student: events,
// accumulators, gap records, recommendations, preferences and the snapshot.
// The anonymized concept-difficulty aggregate is retained.
func (h *Handler) EraseStudent(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	studentID := chi.URLParam(r, "id")

	if err := h.gaps.EraseStudent(r.Context(), studentID); err != nil {
		rw.StoreError(err)
		return
	}
	if err := h.snapshots.Delete(r.Context(), studentID); err != nil {
		rw.StoreError(err)
		return
	}
	rw.NoContent()
}

// UnattributedItems serves the audit trail of items that mapped to no
// concept. These are excluded from gap computation but retained so mapping
// table coverage can be reviewed.
func (h *Handler) UnattributedItems(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 1000 {
			rw.BadRequest("limit must be an integer between 1 and 1000")
			return
		}
		limit = n
	}

	items, err := h.store.UnattributedItems(r.Context(), limit)
	if err != nil {
		rw.StoreError(err)
		return
	}
	if items == nil {
		items = []gap.ItemOutcome{}
	}
	rw.Success(map[string]interface{}{"items": items, "count": len(items)})
}

// ConceptDifficulty serves the anonymized per-concept difficulty aggregate.
type conceptDifficultyEntry struct {
	ConceptID      string    `json:"concept_id"`
	Observations   int64     `json:"observations"`
	DifficultyRate float64   `json:"difficulty_rate"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ConceptDifficulties serves the cohort-level difficulty aggregate. The
// aggregate carries no student identifiers and survives privacy erasure.
func (h *Handler) ConceptDifficulties(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	diffs, err := h.store.ConceptDifficulties(r.Context())
	if err != nil {
		rw.StoreError(err)
		return
	}

	entries := make([]conceptDifficultyEntry, 0, len(diffs))
	for _, d := range diffs {
		entries = append(entries, conceptDifficultyEntry{
			ConceptID:      d.ConceptID,
			Observations:   d.Observations,
			DifficultyRate: d.DifficultyRate(),
			UpdatedAt:      d.UpdatedAt,
		})
	}
	rw.Success(map[string]interface{}{"concepts": entries})
}
