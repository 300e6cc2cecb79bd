// Pathwise - Learning Gap Analysis and Recommendation Engine
// Copyright 2026 Pathwise contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pathwise/pathwise

package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pathwise/pathwise/internal/concept"
	"github.com/pathwise/pathwise/internal/config"
	"github.com/pathwise/pathwise/internal/gap"
	"github.com/pathwise/pathwise/internal/recommend"
	"github.com/pathwise/pathwise/internal/snapshot"
)

// fakePipeline counts recompute calls per student.
type fakePipeline struct {
	mu    sync.Mutex
	calls map[string]int
	graph *concept.Graph
}

func (f *fakePipeline) ComputeGaps(_ context.Context, studentID string, now time.Time) ([]gap.GapRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[studentID]++
	return []gap.GapRecord{
		{StudentID: studentID, ConceptID: "loops", Severity: 0.5, Confidence: 0.25, UpdatedAt: now},
	}, nil
}

func (f *fakePipeline) RankGaps(_ context.Context, studentID string, now time.Time) ([]gap.RankedGap, error) {
	return []gap.RankedGap{
		{GapRecord: gap.GapRecord{StudentID: studentID, ConceptID: "loops"}, Score: 0.125, Rank: 1},
	}, nil
}

func (f *fakePipeline) Graph() *concept.Graph {
	return f.graph
}

func (f *fakePipeline) count(studentID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[studentID]
}

// fakeRecommender returns a fixed path per student.
type fakeRecommender struct{}

func (f *fakeRecommender) ComputeRecommendations(_ context.Context, studentID string, now time.Time) (recommend.Path, error) {
	return recommend.Path{ID: "p-" + studentID, StudentID: studentID, GeneratedAt: now}, nil
}

// fakeSnapshotWriter collects written snapshots.
type fakeSnapshotWriter struct {
	mu    sync.Mutex
	snaps []snapshot.Snapshot
}

func (f *fakeSnapshotWriter) Put(_ context.Context, snap snapshot.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snaps = append(f.snaps, snap)
	return nil
}

func (f *fakeSnapshotWriter) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.snaps)
}

func (f *fakeSnapshotWriter) latest(studentID string) (snapshot.Snapshot, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.snaps) - 1; i >= 0; i-- {
		if f.snaps[i].StudentID == studentID {
			return f.snaps[i], true
		}
	}
	return snapshot.Snapshot{}, false
}

func testGraph(t *testing.T) *concept.Graph {
	t.Helper()
	g, err := concept.NewGraph("v1", []concept.Node{
		{ID: "loops", Name: "Loops", Kind: concept.KindProcedural, Difficulty: concept.DifficultyBeginner},
	})
	if err != nil {
		t.Fatalf("NewGraph() error = %v", err)
	}
	return g
}

func testRecomputeService(t *testing.T) (*RecomputeService, *fakePipeline, *fakeSnapshotWriter) {
	t.Helper()
	pipeline := &fakePipeline{graph: testGraph(t)}
	snaps := &fakeSnapshotWriter{}
	cfg := &config.RecomputeConfig{
		Workers:       2,
		QueueSize:     16,
		Debounce:      20 * time.Millisecond,
		RatePerSecond: 1000,
		Burst:         100,
	}
	return NewRecomputeService(cfg, pipeline, &fakeRecommender{}, snaps), pipeline, snaps
}

// waitFor polls until cond returns true or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestRecomputeService_CycleWritesSnapshot(t *testing.T) {
	svc, pipeline, snaps := testRecomputeService(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = svc.Serve(ctx)
	}()

	svc.MarkDirty("s1")

	if !waitFor(t, 2*time.Second, func() bool {
		_, ok := snaps.latest("s1")
		return ok
	}) {
		t.Fatal("no snapshot written for s1")
	}

	snap, _ := snaps.latest("s1")
	if snap.GraphVersion != "v1" {
		t.Errorf("GraphVersion = %q, want v1", snap.GraphVersion)
	}
	if len(snap.Gaps) != 1 || len(snap.Ranked) != 1 {
		t.Errorf("snapshot gaps/ranked = %d/%d, want 1/1", len(snap.Gaps), len(snap.Ranked))
	}
	if snap.Path.StudentID != "s1" {
		t.Errorf("snapshot path = %+v", snap.Path)
	}
	if pipeline.count("s1") != 1 {
		t.Errorf("recompute cycles = %d, want 1", pipeline.count("s1"))
	}

	cancel()
	<-done
}

func TestRecomputeService_DebounceCoalesces(t *testing.T) {
	svc, pipeline, snaps := testRecomputeService(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = svc.Serve(ctx)
	}()

	// Burst of marks within one debounce window.
	for i := 0; i < 5; i++ {
		svc.MarkDirty("s1")
		time.Sleep(time.Millisecond)
	}

	if !waitFor(t, 2*time.Second, func() bool {
		_, ok := snaps.latest("s1")
		return ok
	}) {
		t.Fatal("no snapshot written for s1")
	}

	// Allow a poll interval to pass to catch an erroneous second cycle.
	time.Sleep(50 * time.Millisecond)
	if n := pipeline.count("s1"); n != 1 {
		t.Errorf("recompute cycles = %d, want 1 coalesced cycle", n)
	}

	cancel()
	<-done
}

func TestRecomputeService_IndependentStudents(t *testing.T) {
	svc, pipeline, snaps := testRecomputeService(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = svc.Serve(ctx)
	}()

	svc.MarkDirty("s1")
	svc.MarkDirty("s2")

	if !waitFor(t, 2*time.Second, func() bool {
		_, ok1 := snaps.latest("s1")
		_, ok2 := snaps.latest("s2")
		return ok1 && ok2
	}) {
		t.Fatal("snapshots missing for one of the students")
	}

	if pipeline.count("s1") != 1 || pipeline.count("s2") != 1 {
		t.Errorf("cycles = s1:%d s2:%d, want one each",
			pipeline.count("s1"), pipeline.count("s2"))
	}

	cancel()
	<-done
}

func TestRecomputeService_MarkAfterCycleRunsAgain(t *testing.T) {
	svc, pipeline, snaps := testRecomputeService(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = svc.Serve(ctx)
	}()

	svc.MarkDirty("s1")
	if !waitFor(t, 2*time.Second, func() bool { return pipeline.count("s1") == 1 }) {
		t.Fatal("first cycle did not run")
	}

	svc.MarkDirty("s1")
	if !waitFor(t, 2*time.Second, func() bool { return pipeline.count("s1") == 2 }) {
		t.Fatal("second cycle did not run after new evidence")
	}

	if snaps.total() < 2 {
		t.Errorf("snapshots written = %d, want 2", snaps.total())
	}

	cancel()
	<-done
}
