// Pathwise - Learning Gap Analysis and Recommendation Engine
// Copyright 2026 Pathwise contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pathwise/pathwise

package gap

import (
	"testing"
	"time"
)

var mapperNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testTable() MappingTable {
	return MappingTable{
		"q1": {{ConceptID: "loops", Weight: 1.0}},
		"q2": {{ConceptID: "loops", Weight: 0.6}, {ConceptID: "functions", Weight: 0.05}},
		"q3": {{ConceptID: "recursion", Weight: 0.05}},
	}
}

func TestMapper_Map(t *testing.T) {
	m := NewMapper(testTable(), nil, 0.1)

	event := PerformanceEvent{
		EventID:   "e1",
		StudentID: "s1",
		Kind:      EventQuiz,
		Timestamp: mapperNow,
		Items: []ItemOutcome{
			{ItemID: "q1", Quality: 1.0},
			{ItemID: "q2", Quality: 0.0},
			{ItemID: "unknown", Quality: 0.5},
		},
	}

	got := m.Map(event)

	// q2's functions mapping (0.05) is below threshold; only two evidence
	// signals survive, both for loops.
	if len(got.Evidence) != 2 {
		t.Fatalf("len(Evidence) = %d, want 2", len(got.Evidence))
	}
	for _, ev := range got.Evidence {
		if ev.ConceptID != "loops" {
			t.Errorf("evidence for concept %q, want only loops", ev.ConceptID)
		}
	}

	if len(got.Unattributed) != 1 || got.Unattributed[0].ItemID != "unknown" {
		t.Errorf("Unattributed = %+v, want the unknown item", got.Unattributed)
	}
}

func TestMapper_AllMappingsSubThreshold(t *testing.T) {
	m := NewMapper(testTable(), nil, 0.1)

	event := PerformanceEvent{
		EventID: "e2", StudentID: "s1", Kind: EventQuiz, Timestamp: mapperNow,
		Items: []ItemOutcome{{ItemID: "q3", Quality: 0.9}},
	}

	got := m.Map(event)
	if len(got.Evidence) != 0 {
		t.Errorf("len(Evidence) = %d, want 0 for sub-threshold-only item", len(got.Evidence))
	}
	if len(got.Unattributed) != 1 {
		t.Errorf("len(Unattributed) = %d, want 1", len(got.Unattributed))
	}
}

func TestMapper_Direction(t *testing.T) {
	m := NewMapper(testTable(), nil, 0.1)

	tests := []struct {
		quality float64
		want    Direction
	}{
		{1.0, DirectionMastery},
		{0.5, DirectionMastery},
		{0.49, DirectionGap},
		{0.0, DirectionGap},
	}

	for _, tt := range tests {
		event := PerformanceEvent{
			EventID: "e3", StudentID: "s1", Kind: EventQuiz, Timestamp: mapperNow,
			Items: []ItemOutcome{{ItemID: "q1", Quality: tt.quality}},
		}
		got := m.Map(event)
		if len(got.Evidence) != 1 {
			t.Fatalf("quality %v: len(Evidence) = %d, want 1", tt.quality, len(got.Evidence))
		}
		if got.Evidence[0].Direction != tt.want {
			t.Errorf("quality %v: direction = %v, want %v", tt.quality, got.Evidence[0].Direction, tt.want)
		}
	}
}

func TestMapper_CodeThresholds(t *testing.T) {
	thresholds := map[string]CodeThreshold{
		"loops": {MaxComplexity: 10, MinCoverage: 0.5},
	}
	m := NewMapper(testTable(), thresholds, 0.1)

	tests := []struct {
		name         string
		code         CodeMetrics
		wantEvidence int
	}{
		{
			name:         "complexity anomaly with failing tests",
			code:         CodeMetrics{Complexity: 15, TestCoverage: 0.9, PassedTests: 3, TotalTests: 5},
			wantEvidence: 2, // correctness + structural
		},
		{
			name:         "high complexity but all tests pass",
			code:         CodeMetrics{Complexity: 15, TestCoverage: 0.9, PassedTests: 5, TotalTests: 5},
			wantEvidence: 1,
		},
		{
			name:         "low coverage",
			code:         CodeMetrics{Complexity: 3, TestCoverage: 0.2, PassedTests: 5, TotalTests: 5},
			wantEvidence: 2,
		},
		{
			name:         "clean submission",
			code:         CodeMetrics{Complexity: 3, TestCoverage: 0.9, PassedTests: 5, TotalTests: 5},
			wantEvidence: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code := tt.code
			event := PerformanceEvent{
				EventID: "e4", StudentID: "s1", Kind: EventCode, Timestamp: mapperNow,
				Items: []ItemOutcome{{ItemID: "q1", Quality: 0.8, Code: &code}},
			}
			got := m.Map(event)
			if len(got.Evidence) != tt.wantEvidence {
				t.Errorf("len(Evidence) = %d, want %d", len(got.Evidence), tt.wantEvidence)
			}
			if tt.wantEvidence == 2 && got.Evidence[1].Direction != DirectionGap {
				t.Errorf("structural evidence direction = %v, want gap", got.Evidence[1].Direction)
			}
		})
	}
}
