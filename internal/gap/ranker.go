// Pathwise - Learning Gap Analysis and Recommendation Engine
// Copyright 2026 Pathwise contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pathwise/pathwise

package gap

import (
	"sort"
)

// ImpactSource supplies the graph-derived impact weight for a concept.
// Satisfied by *concept.Graph; narrow so ranker tests need no graph.
type ImpactSource interface {
	ImpactWeight(conceptID string) int
}

// RankedGap is a gap record with its computed ordering score.
type RankedGap struct {
	GapRecord

	// Score is the primary ordering key, severity weighted by confidence.
	// Higher ranks first.
	Score float64 `json:"score"`

	// Impact is the concept's impact weight, the secondary key.
	Impact int `json:"impact"`

	// Rank is the 1-based position after ordering.
	Rank int `json:"rank"`
}

// Ranker orders gap records for intervention priority.
//
// The keys compare lexicographically: severity weighted by confidence
// first, then the concept's impact weight (gaps blocking more of the graph
// win at equal score), then most recently updated. A later key never
// outweighs an earlier one. Ordering is fully deterministic: records equal
// on all three keys fall back to the concept id.
type Ranker struct {
	impact ImpactSource
}

// NewRanker creates a ranker over the given impact source.
func NewRanker(impact ImpactSource) *Ranker {
	return &Ranker{impact: impact}
}

// Rank returns the records ordered by descending priority. The input slice
// is not modified.
func (r *Ranker) Rank(records []GapRecord) []RankedGap {
	out := make([]RankedGap, len(records))
	for i, rec := range records {
		impact := 0
		if r.impact != nil {
			impact = r.impact.ImpactWeight(rec.ConceptID)
		}
		out[i] = RankedGap{
			GapRecord: rec,
			Score:     rec.Priority(),
			Impact:    impact,
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].Impact != out[j].Impact {
			return out[i].Impact > out[j].Impact
		}
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ConceptID < out[j].ConceptID
	})

	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// Top returns the n highest-ranked gaps, fewer if fewer exist.
func (r *Ranker) Top(records []GapRecord, n int) []RankedGap {
	ranked := r.Rank(records)
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
