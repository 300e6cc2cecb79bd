// Pathwise - Learning Gap Analysis and Recommendation Engine
// Copyright 2026 Pathwise contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pathwise/pathwise

package gap

import (
	"sort"

	"github.com/pathwise/pathwise/internal/metrics"
)

// ConceptWeight binds an item to one concept with an evidence strength.
// Weights are independent evidence channels; they need not sum to 1 across
// the concepts of one item.
type ConceptWeight struct {
	ConceptID string  `json:"concept_id"`
	Weight    float64 `json:"weight"`
}

// MappingTable maps item identifiers to their concept weights. It is
// read-mostly reference data maintained by curriculum administrators and
// swapped wholesale on update.
type MappingTable map[string][]ConceptWeight

// CodeThreshold holds per-concept structural-metric thresholds for code
// submissions. A zero field disables that check.
type CodeThreshold struct {
	// MaxComplexity flags a gap when cyclomatic complexity exceeds it and
	// the submission also has failing tests (complexity anomalies alone
	// are not evidence).
	MaxComplexity int `json:"max_complexity"`

	// MinCoverage flags a gap when test coverage falls below it.
	MinCoverage float64 `json:"min_coverage"`
}

// Mapper turns a performance event into weighted, directional concept
// evidence. It is safe for concurrent use: the mapping table and thresholds
// are read-only after construction.
type Mapper struct {
	table        MappingTable
	thresholds   map[string]CodeThreshold
	minRelevance float64
}

// NewMapper creates a mapper over the given mapping table.
// thresholds may be nil when no code-specific rules are configured.
func NewMapper(table MappingTable, thresholds map[string]CodeThreshold, minRelevance float64) *Mapper {
	if table == nil {
		table = MappingTable{}
	}
	if thresholds == nil {
		thresholds = map[string]CodeThreshold{}
	}
	return &Mapper{
		table:        table,
		thresholds:   thresholds,
		minRelevance: minRelevance,
	}
}

// Map produces the concept evidence for one performance event.
//
// Mappings below the minimum-relevance threshold are discarded entirely.
// Items with no known mapping are collected as unattributed evidence,
// excluded from gap computation but retained for audit.
func (m *Mapper) Map(event PerformanceEvent) MappedEvent {
	out := MappedEvent{
		EventID:   event.EventID,
		StudentID: event.StudentID,
		Timestamp: event.Timestamp,
	}

	for _, item := range event.Items {
		weights, ok := m.table[item.ItemID]
		if !ok || len(weights) == 0 {
			out.Unattributed = append(out.Unattributed, item)
			metrics.UnmappedItems.Inc()
			continue
		}

		attributed := false
		for _, cw := range weights {
			if cw.Weight < m.minRelevance {
				continue
			}
			out.Evidence = append(out.Evidence, m.itemEvidence(event, item, cw)...)
			attributed = true
		}

		// Every mapping was sub-threshold: treat as unattributed.
		if !attributed {
			out.Unattributed = append(out.Unattributed, item)
			metrics.UnmappedItems.Inc()
		}
	}

	// Stable evidence order keeps downstream aggregation deterministic.
	sort.SliceStable(out.Evidence, func(i, j int) bool {
		return out.Evidence[i].ConceptID < out.Evidence[j].ConceptID
	})

	return out
}

// itemEvidence converts one (item, concept-weight) pair into evidence.
// Code submissions may contribute an extra structural-metric signal on top
// of the correctness signal.
func (m *Mapper) itemEvidence(event PerformanceEvent, item ItemOutcome, cw ConceptWeight) []Evidence {
	ev := []Evidence{{
		ConceptID: cw.ConceptID,
		EventID:   event.EventID,
		Weight:    cw.Weight,
		Quality:   clamp01(item.Quality),
		Direction: directionFor(item.Quality),
		Timestamp: event.Timestamp,
	}}

	if event.Kind != EventCode || item.Code == nil {
		return ev
	}

	th, ok := m.thresholds[cw.ConceptID]
	if !ok {
		return ev
	}

	if structural, flagged := structuralGap(*item.Code, th); flagged {
		ev = append(ev, Evidence{
			ConceptID: cw.ConceptID,
			EventID:   event.EventID,
			Weight:    cw.Weight,
			Quality:   structural,
			Direction: DirectionGap,
			Timestamp: event.Timestamp,
		})
	}
	return ev
}

// structuralGap evaluates code metrics against a concept threshold.
// Returns the quality signal for the structural evidence (low quality =
// strong gap signal) and whether any check fired.
func structuralGap(code CodeMetrics, th CodeThreshold) (float64, bool) {
	complexityAnomaly := th.MaxComplexity > 0 &&
		code.Complexity > th.MaxComplexity &&
		code.FailedTests() > 0

	coverageAnomaly := th.MinCoverage > 0 && code.TestCoverage < th.MinCoverage

	if !complexityAnomaly && !coverageAnomaly {
		return 0, false
	}

	// Failing more tests makes the structural signal stronger.
	quality := 0.0
	if code.TotalTests > 0 {
		quality = float64(code.PassedTests) / float64(code.TotalTests)
	}
	return clamp01(quality), true
}

// directionFor classifies an outcome quality as mastery or gap evidence.
func directionFor(quality float64) Direction {
	if quality >= 0.5 {
		return DirectionMastery
	}
	return DirectionGap
}

// clamp01 clamps v to [0, 1].
func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
