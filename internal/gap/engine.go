// Pathwise - Learning Gap Analysis and Recommendation Engine
// Copyright 2026 Pathwise contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pathwise/pathwise

// Package gap implements the gap analysis pipeline: mapping performance
// events to concept evidence, aggregating evidence with recency decay,
// estimating per-concept gap severity and confidence, and ranking gaps for
// intervention priority.
//
// The pipeline for one student is a pure transformation over that student's
// accumulators and the shared concept graph. Computation for different
// students has no data dependency; the engine is safe for concurrent use
// across students.
package gap

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pathwise/pathwise/internal/concept"
	"github.com/pathwise/pathwise/internal/logging"
	"github.com/pathwise/pathwise/internal/metrics"
)

// EventStore persists raw performance events and their mapping audit trail.
type EventStore interface {
	// AppendEvent atomically stores an event, its mapped output and the
	// updated accumulators in one transaction, so a crash never leaves an
	// event marked ingested with its evidence half-applied. It returns
	// ErrDuplicateEvent when the event id is already stored; duplicates
	// must never reach the accumulators.
	AppendEvent(ctx context.Context, event PerformanceEvent, mapped MappedEvent, accs []Accumulator) error

	// EventSeen reports whether an event id has already been ingested.
	EventSeen(ctx context.Context, eventID string) (bool, error)
}

// AccumulatorStore persists evidence accumulators and their supporting
// evidence references.
type AccumulatorStore interface {
	// Accumulator loads one accumulator; ok is false when none exists yet.
	Accumulator(ctx context.Context, studentID, conceptID string) (acc Accumulator, ok bool, err error)

	// StudentAccumulators loads all accumulators for a student, ordered by
	// concept id.
	StudentAccumulators(ctx context.Context, studentID string) ([]Accumulator, error)

	// PutAccumulator upserts an accumulator.
	PutAccumulator(ctx context.Context, acc Accumulator) error

	// EvidenceRefs returns up to limit most recent evidence references for
	// one (student, concept).
	EvidenceRefs(ctx context.Context, studentID, conceptID string, limit int) ([]EvidenceRef, error)
}

// GapStore persists computed gap records.
type GapStore interface {
	// GapRecords loads the current records for a student, ordered by
	// concept id.
	GapRecords(ctx context.Context, studentID string) ([]GapRecord, error)

	// ReplaceGapRecords atomically supersedes all of a student's records.
	ReplaceGapRecords(ctx context.Context, studentID string, records []GapRecord) error
}

// Eraser removes a student's identifiable state while folding their
// per-concept outcomes into the anonymized difficulty aggregate.
type Eraser interface {
	EraseStudent(ctx context.Context, studentID string) error
}

// Store is the full persistence surface the engine needs.
type Store interface {
	EventStore
	AccumulatorStore
	GapStore
	Eraser
}

// Engine runs the gap analysis pipeline.
type Engine struct {
	cfg       *Config
	store     Store
	mapper    *Mapper
	agg       *Aggregator
	estimator Estimator
	logger    zerolog.Logger

	mu    sync.RWMutex
	graph *concept.Graph

	// students holds one mutex per student id. Decay-then-add is not
	// commutative, so all accumulator updates for a student are applied
	// under that student's lock.
	students sync.Map
}

// NewEngine creates an engine over the given store and concept graph.
// estimator may be nil, in which case the reference estimator is used.
func NewEngine(cfg *Config, store Store, graph *concept.Graph, mapping MappingTable, thresholds map[string]CodeThreshold, estimator Estimator) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("gap engine config: %w", err)
	}
	if estimator == nil {
		estimator = NewReferenceEstimator(cfg)
	}
	return &Engine{
		cfg:       cfg.Clone(),
		store:     store,
		mapper:    NewMapper(mapping, thresholds, cfg.MinRelevance),
		agg:       NewAggregator(cfg.HalfLife),
		estimator: estimator,
		graph:     graph,
		logger:    logging.With().Str("component", "gap_engine").Logger(),
	}, nil
}

// Graph returns the active concept graph snapshot.
func (e *Engine) Graph() *concept.Graph {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.graph
}

// SetGraph swaps in a new concept graph snapshot. The graph has already been
// validated by concept.NewGraph; in-flight computations keep using the
// snapshot they started with.
func (e *Engine) SetGraph(g *concept.Graph) {
	e.mu.Lock()
	e.graph = g
	e.mu.Unlock()
	e.logger.Info().Str("graph_version", g.Version()).Int("concepts", g.Len()).
		Msg("Concept graph updated")
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() *Config {
	return e.cfg.Clone()
}

// lockStudent serializes accumulator updates for one student. The returned
// function releases the lock.
func (e *Engine) lockStudent(studentID string) func() {
	v, _ := e.students.LoadOrStore(studentID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// IngestEvent persists one performance event, maps it to concept evidence
// and folds that evidence into the student's accumulators. The event row,
// its audit trail and the accumulator updates commit in one store
// transaction; a failed ingest leaves no trace and is safe to retry.
//
// Events are de-duplicated on event id: a replayed event returns
// ErrDuplicateEvent before touching any accumulator, so retries at the feed
// boundary never double-count evidence.
func (e *Engine) IngestEvent(ctx context.Context, event PerformanceEvent) (MappedEvent, error) {
	unlock := e.lockStudent(event.StudentID)
	defer unlock()

	seen, err := e.store.EventSeen(ctx, event.EventID)
	if err != nil {
		return MappedEvent{}, fmt.Errorf("check event id: %w", err)
	}
	if seen {
		metrics.EventsDuplicate.Inc()
		e.logger.Debug().Str("event_id", event.EventID).Msg("Duplicate event dropped")
		return MappedEvent{}, fmt.Errorf("%w: %s", ErrDuplicateEvent, event.EventID)
	}

	mapped := e.mapper.Map(event)
	graph := e.Graph()

	// Fold the evidence in memory first, so every accumulator write lands
	// in the same transaction as the event row.
	updated := make(map[string]Accumulator)
	for _, ev := range mapped.Evidence {
		if !graph.Contains(ev.ConceptID) {
			// Mapping table drifted ahead of the graph. Audit and skip.
			e.logger.Warn().Str("concept", ev.ConceptID).Str("event_id", ev.EventID).
				Msg("Evidence references concept absent from graph")
			continue
		}
		acc, ok := updated[ev.ConceptID]
		if !ok {
			var found bool
			acc, found, err = e.store.Accumulator(ctx, event.StudentID, ev.ConceptID)
			if err != nil {
				return MappedEvent{}, fmt.Errorf("load accumulator %s/%s: %w",
					event.StudentID, ev.ConceptID, err)
			}
			if !found {
				acc = Accumulator{StudentID: event.StudentID, ConceptID: ev.ConceptID}
			}
		}
		acc, err = e.agg.Apply(acc, ev)
		if err != nil {
			return MappedEvent{}, fmt.Errorf("apply evidence for %s/%s: %w",
				event.StudentID, ev.ConceptID, err)
		}
		updated[ev.ConceptID] = acc
	}

	accs := make([]Accumulator, 0, len(updated))
	for _, acc := range updated {
		accs = append(accs, acc)
	}
	sort.Slice(accs, func(i, j int) bool { return accs[i].ConceptID < accs[j].ConceptID })

	if err := e.store.AppendEvent(ctx, event, mapped, accs); err != nil {
		if errors.Is(err, ErrDuplicateEvent) {
			metrics.EventsDuplicate.Inc()
			e.logger.Debug().Str("event_id", event.EventID).Msg("Duplicate event dropped")
		}
		return MappedEvent{}, err
	}

	metrics.EventsIngested.WithLabelValues(string(event.Kind)).Inc()
	e.logger.Debug().
		Str("event_id", event.EventID).
		Str("student_id", event.StudentID).
		Int("evidence", len(mapped.Evidence)).
		Int("unattributed", len(mapped.Unattributed)).
		Msg("Event ingested")
	return mapped, nil
}

// applyEvidence folds one evidence signal into its accumulator. Callers
// must hold the student's lock.
func (e *Engine) applyEvidence(ctx context.Context, studentID string, ev Evidence) error {
	acc, ok, err := e.store.Accumulator(ctx, studentID, ev.ConceptID)
	if err != nil {
		return err
	}
	if !ok {
		acc = Accumulator{StudentID: studentID, ConceptID: ev.ConceptID}
	}

	acc, err = e.agg.Apply(acc, ev)
	if err != nil {
		return err
	}
	return e.store.PutAccumulator(ctx, acc)
}

// ApplyCorrective folds one feedback-derived evidence signal into the
// student's accumulator, bypassing the event mapper. Used by the
// recommendation tracker to feed effectiveness ratings back into gap
// estimation.
func (e *Engine) ApplyCorrective(ctx context.Context, studentID string, ev Evidence) error {
	if !e.Graph().Contains(ev.ConceptID) {
		return fmt.Errorf("%w: %s", ErrUnknownConcept, ev.ConceptID)
	}

	unlock := e.lockStudent(studentID)
	defer unlock()

	if err := e.applyEvidence(ctx, studentID, ev); err != nil {
		return fmt.Errorf("apply corrective evidence for %s/%s: %w", studentID, ev.ConceptID, err)
	}
	e.logger.Debug().
		Str("student_id", studentID).
		Str("concept", ev.ConceptID).
		Float64("quality", ev.Quality).
		Msg("Corrective evidence applied")
	return nil
}

// ComputeGaps recomputes all gap records for a student from the current
// accumulator state and persists them as the student's new record set,
// superseding the prior set atomically. The prior severity of each concept
// becomes the new record's trend input.
//
// The computation is deterministic given the same accumulator state, graph
// version and now.
func (e *Engine) ComputeGaps(ctx context.Context, studentID string, now time.Time) ([]GapRecord, error) {
	accs, err := e.store.StudentAccumulators(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("load accumulators: %w", err)
	}

	priorList, err := e.store.GapRecords(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("load prior gap records: %w", err)
	}
	prior := make(map[string]GapRecord, len(priorList))
	for _, rec := range priorList {
		prior[rec.ConceptID] = rec
	}

	graph := e.Graph()
	records := make([]GapRecord, 0, len(accs))
	for _, acc := range accs {
		if !graph.Contains(acc.ConceptID) {
			continue
		}

		var prev *GapRecord
		if p, ok := prior[acc.ConceptID]; ok {
			prev = &p
		}

		rec := e.estimator.Estimate(e.agg.DecayTo(acc, now), prev, now)

		refs, err := e.store.EvidenceRefs(ctx, studentID, acc.ConceptID, e.cfg.MaxEvidenceRefs)
		if err != nil {
			return nil, fmt.Errorf("load evidence refs: %w", err)
		}
		rec.Evidence = refs
		records = append(records, rec)
	}

	if err := e.store.ReplaceGapRecords(ctx, studentID, records); err != nil {
		return nil, fmt.Errorf("replace gap records: %w", err)
	}

	metrics.GapRecordsEmitted.Add(float64(len(records)))
	e.logger.Debug().
		Str("student_id", studentID).
		Int("records", len(records)).
		Str("graph_version", graph.Version()).
		Msg("Gap records recomputed")
	return records, nil
}

// RankGaps orders a student's current gap records for intervention priority
// and returns the top N per configuration.
func (e *Engine) RankGaps(ctx context.Context, studentID string, now time.Time) ([]RankedGap, error) {
	records, err := e.store.GapRecords(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("load gap records: %w", err)
	}
	ranker := NewRanker(e.Graph())
	return ranker.Top(records, e.cfg.TopN), nil
}

// EraseStudent deletes the student's accumulators, gap records and
// recommendation history while retaining the anonymized concept-difficulty
// aggregate. A subsequent ComputeGaps returns an empty list.
func (e *Engine) EraseStudent(ctx context.Context, studentID string) error {
	unlock := e.lockStudent(studentID)
	defer unlock()

	if err := e.store.EraseStudent(ctx, studentID); err != nil {
		return fmt.Errorf("erase student: %w", err)
	}
	metrics.StudentsErased.Inc()
	e.logger.Info().Str("student_id", studentID).Msg("Student state erased")
	return nil
}
