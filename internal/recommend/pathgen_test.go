// Pathwise - Learning Gap Analysis and Recommendation Engine
// Copyright 2026 Pathwise contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pathwise/pathwise

package recommend

import (
	"testing"
	"time"

	"github.com/pathwise/pathwise/internal/concept"
	"github.com/pathwise/pathwise/internal/gap"
)

var genNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func pathGraph(t *testing.T) *concept.Graph {
	t.Helper()
	g, err := concept.NewGraph("v1", []concept.Node{
		{ID: "python_basics"},
		{ID: "functions", Prerequisites: []string{"python_basics"}},
		{ID: "loops", Prerequisites: []string{"python_basics"}},
		{ID: "recursion", Prerequisites: []string{"functions"}},
	})
	if err != nil {
		t.Fatalf("NewGraph() error = %v", err)
	}
	return g
}

func rankedGap(conceptID string, score float64) gap.RankedGap {
	return gap.RankedGap{
		GapRecord: gap.GapRecord{StudentID: "s1", ConceptID: conceptID, Severity: score, Confidence: 1.0},
		Score:     score,
	}
}

func resource(id, conceptID string, minutes int) Resource {
	return Resource{ID: id, ConceptID: conceptID, Type: TypeVideo, EstimatedMinutes: minutes}
}

// conceptOrder returns the distinct concept ids in path order.
func conceptOrder(p Path) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, it := range p.Items {
		if _, ok := seen[it.ConceptID]; ok {
			continue
		}
		seen[it.ConceptID] = struct{}{}
		out = append(out, it.ConceptID)
	}
	return out
}

// A functions resource must precede any recursion resource even though
// recursion ranks higher.
func TestGenerator_PrerequisiteBeforeDependent(t *testing.T) {
	gen := NewGenerator(DefaultConfig())

	ranked := []gap.RankedGap{
		rankedGap("recursion", 0.9),
		rankedGap("functions", 0.5),
	}
	perGap := map[string][]Resource{
		"recursion": {resource("r_rec", "recursion", 30)},
		"functions": {resource("r_fun", "functions", 20)},
	}

	path := gen.Generate("s1", ranked, perGap, nil, Preferences{}, pathGraph(t), genNow)

	order := conceptOrder(path)
	if len(order) != 2 || order[0] != "functions" || order[1] != "recursion" {
		t.Fatalf("concept order = %v, want [functions recursion]", order)
	}
	if path.Degraded {
		t.Error("Degraded = true on a valid graph")
	}
	for _, it := range path.Items {
		if !it.PrerequisiteSatisfied {
			t.Errorf("item %s PrerequisiteSatisfied = false", it.ConceptID)
		}
	}
}

// Prerequisite ordering holds for every pair across a larger path.
func TestGenerator_TopologicalInvariant(t *testing.T) {
	gen := NewGenerator(DefaultConfig())
	graph := pathGraph(t)

	ranked := []gap.RankedGap{
		rankedGap("recursion", 0.9),
		rankedGap("loops", 0.8),
		rankedGap("functions", 0.7),
		rankedGap("python_basics", 0.2),
	}
	perGap := map[string][]Resource{
		"recursion":     {resource("r1", "recursion", 10)},
		"loops":         {resource("r2", "loops", 10)},
		"functions":     {resource("r3", "functions", 10)},
		"python_basics": {resource("r4", "python_basics", 10)},
	}

	path := gen.Generate("s1", ranked, perGap, nil, Preferences{}, graph, genNow)

	for i, a := range path.Items {
		for _, b := range path.Items[i+1:] {
			if graph.IsPrerequisite(b.ConceptID, a.ConceptID) {
				t.Errorf("%s appears before its prerequisite %s", a.ConceptID, b.ConceptID)
			}
		}
	}

	// Among unordered siblings, rank order decides: loops (0.8) before
	// functions (0.7).
	order := conceptOrder(path)
	if order[0] != "python_basics" {
		t.Errorf("first concept = %s, want python_basics", order[0])
	}
	if idx(order, "loops") > idx(order, "functions") {
		t.Errorf("loops ranked higher but placed after functions: %v", order)
	}
}

func idx(xs []string, s string) int {
	for i, x := range xs {
		if x == s {
			return i
		}
	}
	return -1
}

func TestGenerator_TimeBudget(t *testing.T) {
	gen := NewGenerator(DefaultConfig())

	ranked := []gap.RankedGap{
		rankedGap("functions", 0.9),
		rankedGap("loops", 0.8),
		rankedGap("recursion", 0.7),
	}
	perGap := map[string][]Resource{
		"functions": {resource("r1", "functions", 30)},
		"loops":     {resource("r2", "loops", 30)},
		"recursion": {resource("r3", "recursion", 30)},
	}

	prefs := Preferences{TimeBudgetMinutes: 60}
	path := gen.Generate("s1", ranked, perGap, nil, prefs, pathGraph(t), genNow)

	if path.TotalMinutes > 60 {
		t.Errorf("TotalMinutes = %d, exceeds budget 60", path.TotalMinutes)
	}
	order := conceptOrder(path)
	if len(order) != 2 {
		t.Fatalf("concept order = %v, want 2 concepts within budget", order)
	}
}

// When the budget forces a prerequisite out, its dependents are dropped too
// rather than appearing without it.
func TestGenerator_BudgetDropsDependentsOfSkipped(t *testing.T) {
	gen := NewGenerator(DefaultConfig())

	ranked := []gap.RankedGap{
		rankedGap("loops", 0.9),
		rankedGap("functions", 0.8),
		rankedGap("recursion", 0.7),
	}
	perGap := map[string][]Resource{
		"loops":     {resource("r1", "loops", 30)},
		"functions": {resource("r2", "functions", 50)}, // does not fit after loops
		"recursion": {resource("r3", "recursion", 10)}, // would fit, but depends on functions
	}

	prefs := Preferences{TimeBudgetMinutes: 60}
	path := gen.Generate("s1", ranked, perGap, nil, prefs, pathGraph(t), genNow)

	order := conceptOrder(path)
	if idx(order, "functions") != -1 {
		t.Errorf("functions should be skipped by budget, got %v", order)
	}
	if idx(order, "recursion") != -1 {
		t.Errorf("recursion kept without its prerequisite functions: %v", order)
	}
	if idx(order, "loops") == -1 {
		t.Errorf("loops should remain: %v", order)
	}
}

// cyclicPrereqs reports every pair as mutually prerequisite, simulating a
// cycle that slipped past graph validation.
type cyclicPrereqs struct{}

func (cyclicPrereqs) IsPrerequisite(a, b string) bool { return a != b }
func (cyclicPrereqs) Version() string                 { return "broken" }

func TestGenerator_CycleFallsBackToRankOrder(t *testing.T) {
	gen := NewGenerator(DefaultConfig())

	ranked := []gap.RankedGap{
		rankedGap("recursion", 0.9),
		rankedGap("functions", 0.5),
	}
	perGap := map[string][]Resource{
		"recursion": {resource("r1", "recursion", 10)},
		"functions": {resource("r2", "functions", 10)},
	}

	path := gen.Generate("s1", ranked, perGap, nil, Preferences{}, cyclicPrereqs{}, genNow)

	if !path.Degraded {
		t.Fatal("Degraded = false, want true for a cyclic relation")
	}
	order := conceptOrder(path)
	if len(order) != 2 || order[0] != "recursion" {
		t.Errorf("degraded order = %v, want rank order [recursion functions]", order)
	}
}

// A filler resource precedes the gap it supports, at reduced priority,
// without counting as a gap item itself.
func TestGenerator_FillerPrecedesItsGap(t *testing.T) {
	gen := NewGenerator(DefaultConfig())

	ranked := []gap.RankedGap{rankedGap("recursion", 0.8)}
	perGap := map[string][]Resource{
		"recursion": {resource("r_rec", "recursion", 30)},
	}
	fillers := map[string][]Resource{
		"recursion": {resource("r_fun", "functions", 15)},
	}

	path := gen.Generate("s1", ranked, perGap, fillers, Preferences{}, pathGraph(t), genNow)

	order := conceptOrder(path)
	if len(order) != 2 || order[0] != "functions" || order[1] != "recursion" {
		t.Fatalf("concept order = %v, want [functions recursion]", order)
	}
	filler := path.Items[0]
	if filler.ResourceID != "r_fun" {
		t.Fatalf("first item = %+v, want the functions review", filler)
	}
	if filler.Priority >= path.Items[1].Priority {
		t.Errorf("filler priority %v not below gap priority %v", filler.Priority, path.Items[1].Priority)
	}
	if filler.GapSeverity != 0 || filler.GapConfidence != 0 {
		t.Errorf("filler carries gap fields: %+v", filler)
	}
	if path.TotalMinutes != 45 {
		t.Errorf("TotalMinutes = %d, want 45", path.TotalMinutes)
	}
}

// A filler that overflows the budget is dropped alone; the gap it supports
// stays on the path.
func TestGenerator_BudgetDropsFillerNotGap(t *testing.T) {
	gen := NewGenerator(DefaultConfig())

	ranked := []gap.RankedGap{rankedGap("recursion", 0.8)}
	perGap := map[string][]Resource{
		"recursion": {resource("r_rec", "recursion", 30)},
	}
	fillers := map[string][]Resource{
		"recursion": {resource("r_fun", "functions", 25)},
	}

	prefs := Preferences{TimeBudgetMinutes: 40}
	path := gen.Generate("s1", ranked, perGap, fillers, prefs, pathGraph(t), genNow)

	order := conceptOrder(path)
	if idx(order, "functions") != -1 {
		t.Errorf("filler kept over budget: %v", order)
	}
	if idx(order, "recursion") == -1 {
		t.Errorf("gap dropped with its filler: %v", order)
	}
	if path.TotalMinutes != 30 {
		t.Errorf("TotalMinutes = %d, want 30", path.TotalMinutes)
	}
}

func TestGenerator_EmptyGaps(t *testing.T) {
	gen := NewGenerator(DefaultConfig())
	path := gen.Generate("s1", nil, nil, nil, Preferences{}, pathGraph(t), genNow)

	if len(path.Items) != 0 || path.TotalMinutes != 0 {
		t.Errorf("empty input produced items: %+v", path)
	}
	if path.ID == "" || path.StudentID != "s1" {
		t.Errorf("path metadata missing: %+v", path)
	}
}
