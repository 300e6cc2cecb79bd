// Pathwise - Learning Gap Analysis and Recommendation Engine
// Copyright 2026 Pathwise contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pathwise/pathwise

package recommend

import (
	"context"
	"testing"
	"time"

	"github.com/pathwise/pathwise/internal/concept"
	"github.com/pathwise/pathwise/internal/gap"
)

// fixedGaps is a GapSource returning a literal ranked list.
type fixedGaps struct {
	ranked []gap.RankedGap
	graph  *concept.Graph
}

func (f *fixedGaps) RankGaps(_ context.Context, _ string, _ time.Time) ([]gap.RankedGap, error) {
	return f.ranked, nil
}

func (f *fixedGaps) Graph() *concept.Graph { return f.graph }

// memRecStore is an in-memory recommendation Store.
type memRecStore struct {
	memFeedback
	prefs map[string]Preferences
	paths map[string][]Path
}

func newMemRecStore() *memRecStore {
	return &memRecStore{
		memFeedback: memFeedback{items: make(map[string]Item)},
		prefs:       make(map[string]Preferences),
		paths:       make(map[string][]Path),
	}
}

func (m *memRecStore) Preferences(_ context.Context, studentID string) (Preferences, bool, error) {
	p, ok := m.prefs[studentID]
	return p, ok, nil
}

func (m *memRecStore) RetireActiveItems(_ context.Context, studentID string) error {
	for id, it := range m.items {
		if it.StudentID == studentID && it.State == StateActive {
			it.State = StateRetired
			m.items[id] = it
		}
	}
	return nil
}

func (m *memRecStore) SavePath(_ context.Context, path Path) error {
	m.paths[path.StudentID] = append(m.paths[path.StudentID], path)
	for _, it := range path.Items {
		m.items[it.ID] = it
	}
	return nil
}

func (m *memRecStore) LatestPath(_ context.Context, studentID string) (Path, bool, error) {
	ps := m.paths[studentID]
	if len(ps) == 0 {
		return Path{}, false, nil
	}
	return ps[len(ps)-1], true, nil
}

func recTestEngine(t *testing.T, store *memRecStore, sink CorrectiveSink) *Engine {
	t.Helper()

	graph, err := concept.NewGraph("v1", []concept.Node{
		{ID: "functions"},
		{ID: "recursion", Prerequisites: []string{"functions"}},
	})
	if err != nil {
		t.Fatalf("NewGraph() error = %v", err)
	}

	gaps := &fixedGaps{
		graph: graph,
		ranked: []gap.RankedGap{
			{GapRecord: gap.GapRecord{StudentID: "s1", ConceptID: "recursion", Severity: 0.9, Confidence: 0.9}, Score: 0.81, Rank: 1},
			{GapRecord: gap.GapRecord{StudentID: "s1", ConceptID: "functions", Severity: 0.6, Confidence: 0.8}, Score: 0.48, Rank: 2},
		},
	}

	catalog := NewCatalog([]Resource{
		{ID: "f1", ConceptID: "functions", Type: TypeVideo, EstimatedMinutes: 20},
		{ID: "f2", ConceptID: "functions", Type: TypeArticle, EstimatedMinutes: 10},
		{ID: "rc1", ConceptID: "recursion", Type: TypeInteractive, EstimatedMinutes: 30},
		{ID: "rc2", ConceptID: "recursion", Type: TypeQuiz, EstimatedMinutes: 15},
	})

	eng, err := NewEngine(DefaultConfig(), gaps, store, catalog, sink)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	return eng
}

func TestEngine_ComputeRecommendations(t *testing.T) {
	ctx := context.Background()
	store := newMemRecStore()
	eng := recTestEngine(t, store, nil)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	path, err := eng.ComputeRecommendations(ctx, "s1", now)
	if err != nil {
		t.Fatalf("ComputeRecommendations() error = %v", err)
	}

	if len(path.Items) == 0 {
		t.Fatal("path has no items")
	}
	// functions precedes recursion despite recursion's higher rank.
	order := conceptOrder(path)
	if order[0] != "functions" {
		t.Errorf("first concept = %s, want functions", order[0])
	}

	// The path is persisted and readable.
	got, ok, err := eng.LatestPath(ctx, "s1")
	if err != nil || !ok {
		t.Fatalf("LatestPath() = ok %v, err %v", ok, err)
	}
	if got.ID != path.ID {
		t.Errorf("LatestPath id = %s, want %s", got.ID, path.ID)
	}
}

// Regenerating retires the prior set instead of mutating it.
func TestEngine_RegenerationRetiresPriorSet(t *testing.T) {
	ctx := context.Background()
	store := newMemRecStore()
	eng := recTestEngine(t, store, nil)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	first, err := eng.ComputeRecommendations(ctx, "s1", now)
	if err != nil {
		t.Fatalf("ComputeRecommendations() error = %v", err)
	}
	if _, err := eng.ComputeRecommendations(ctx, "s1", now.Add(time.Hour)); err != nil {
		t.Fatalf("ComputeRecommendations() error = %v", err)
	}

	for _, it := range first.Items {
		stored := store.items[it.ID]
		if stored.State != StateRetired {
			t.Errorf("prior item %s state = %s, want retired", it.ID, stored.State)
		}
	}
}

// An ineffective resource disappears from the next regeneration.
func TestEngine_IneffectiveResourceExcluded(t *testing.T) {
	ctx := context.Background()
	store := newMemRecStore()
	sink := &captureSink{}
	eng := recTestEngine(t, store, sink)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	first, err := eng.ComputeRecommendations(ctx, "s1", now)
	if err != nil {
		t.Fatalf("ComputeRecommendations() error = %v", err)
	}

	// Rate the first recursion item ineffective.
	var rated Item
	for _, it := range first.Items {
		if it.ConceptID == "recursion" {
			rated = it
			break
		}
	}
	if rated.ID == "" {
		t.Fatal("no recursion item in first path")
	}
	if err := eng.RecordFeedback(ctx, rated.ID, true, ratingPtr(0.1), now.Add(time.Hour)); err != nil {
		t.Fatalf("RecordFeedback() error = %v", err)
	}

	second, err := eng.ComputeRecommendations(ctx, "s1", now.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("ComputeRecommendations() error = %v", err)
	}
	for _, it := range second.Items {
		if it.ResourceID == rated.ResourceID {
			t.Errorf("ineffective resource %s recommended again", it.ResourceID)
		}
	}

	// The low rating also produced corrective gap evidence.
	if len(sink.evidence) != 1 || sink.evidence[0].Direction != gap.DirectionGap {
		t.Errorf("corrective evidence = %+v, want one gap signal", sink.evidence)
	}
}

// A low-confidence gap pulls in a review resource for its non-gapped
// prerequisite, placed ahead of the gap at reduced priority.
func TestEngine_LowConfidenceGapGetsPrerequisiteReview(t *testing.T) {
	ctx := context.Background()
	store := newMemRecStore()

	graph, err := concept.NewGraph("v1", []concept.Node{
		{ID: "functions"},
		{ID: "recursion", Prerequisites: []string{"functions"}},
	})
	if err != nil {
		t.Fatalf("NewGraph() error = %v", err)
	}

	// recursion has too little evidence to address head-on; functions
	// itself has no gap.
	gaps := &fixedGaps{
		graph: graph,
		ranked: []gap.RankedGap{
			{GapRecord: gap.GapRecord{StudentID: "s1", ConceptID: "recursion", Severity: 0.7, Confidence: 0.2, NeedsMoreData: true}, Score: 0.14, Rank: 1},
		},
	}
	catalog := NewCatalog([]Resource{
		{ID: "f1", ConceptID: "functions", Type: TypeVideo, EstimatedMinutes: 20},
		{ID: "rc1", ConceptID: "recursion", Type: TypeQuiz, EstimatedMinutes: 15},
	})
	eng, err := NewEngine(DefaultConfig(), gaps, store, catalog, nil)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	path, err := eng.ComputeRecommendations(ctx, "s1", time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("ComputeRecommendations() error = %v", err)
	}

	order := conceptOrder(path)
	if len(order) != 2 || order[0] != "functions" || order[1] != "recursion" {
		t.Fatalf("concept order = %v, want [functions recursion]", order)
	}
	var review, target Item
	for _, it := range path.Items {
		switch it.ConceptID {
		case "functions":
			review = it
		case "recursion":
			target = it
		}
	}
	if review.ResourceID != "f1" {
		t.Fatalf("review item = %+v, want resource f1", review)
	}
	if review.Priority >= target.Priority {
		t.Errorf("review priority %v not below gap priority %v", review.Priority, target.Priority)
	}
}

// A confident gap pulls no review filler for its prerequisites.
func TestEngine_ConfidentGapHasNoFiller(t *testing.T) {
	ctx := context.Background()
	store := newMemRecStore()
	eng := recTestEngine(t, store, nil)

	path, err := eng.ComputeRecommendations(ctx, "s1", time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("ComputeRecommendations() error = %v", err)
	}
	// Both concepts are gapped, so every item targets a gap.
	for _, it := range path.Items {
		if it.GapSeverity == 0 && it.GapConfidence == 0 {
			t.Errorf("unexpected filler item: %+v", it)
		}
	}
}

func TestEngine_TimeBudgetRespected(t *testing.T) {
	ctx := context.Background()
	store := newMemRecStore()
	store.prefs["s1"] = Preferences{StudentID: "s1", TimeBudgetMinutes: 35}
	eng := recTestEngine(t, store, nil)

	path, err := eng.ComputeRecommendations(ctx, "s1", time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("ComputeRecommendations() error = %v", err)
	}
	if path.TotalMinutes > 35 {
		t.Errorf("TotalMinutes = %d, exceeds budget 35", path.TotalMinutes)
	}
}
