// Pathwise - Learning Gap Analysis and Recommendation Engine
// Copyright 2026 Pathwise contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pathwise/pathwise

package recommend

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pathwise/pathwise/internal/gap"
	"github.com/pathwise/pathwise/internal/logging"
	"github.com/pathwise/pathwise/internal/metrics"
)

// PrereqSource exposes the prerequisite relation the generator orders by.
// Satisfied by *concept.Graph; narrow so tests can inject a broken relation.
type PrereqSource interface {
	// IsPrerequisite reports whether a is a (transitive) prerequisite of b.
	IsPrerequisite(a, b string) bool

	// Version identifies the graph snapshot.
	Version() string
}

// Generator sequences matched resources into a prerequisite-respecting,
// time-budget-constrained learning path.
type Generator struct {
	cfg    *Config
	logger zerolog.Logger
}

// NewGenerator creates a path generator.
func NewGenerator(cfg *Config) *Generator {
	return &Generator{
		cfg:    cfg,
		logger: logging.With().Str("component", "path_generator").Logger(),
	}
}

// fillerPriorityFactor discounts prerequisite-review filler relative to
// the gap item it supports.
const fillerPriorityFactor = 0.5

// Generate builds a learning path from ranked gaps and their matched
// resources. Gaps arrive in rank order; perGap maps concept id to the
// matcher's selection for that gap. fillers maps a gap concept to review
// resources for its non-gapped prerequisites; each filler precedes its
// gap's items at reduced priority.
//
// Ordering: a stable topological sort over the gap concepts, preferring
// rank order among concepts whose prerequisites are already placed. If the
// prerequisite relation cannot produce an ordering (a cycle slipped past
// graph validation), the path falls back to plain rank order and is marked
// degraded; the condition is logged for curriculum-data review, never
// raised as an error.
//
// Budget: when the student's time budget would be exceeded, the item is
// dropped together with every later item depending on its concept, so a
// truncated path never teaches a dependent without its prerequisite.
// Filler is expendable: a filler that does not fit is dropped alone, the
// gap it supports stays.
func (g *Generator) Generate(studentID string, ranked []gap.RankedGap, perGap map[string][]Resource, fillers map[string][]Resource, prefs Preferences, prereqs PrereqSource, now time.Time) Path {
	path := Path{
		ID:           uuid.NewString(),
		StudentID:    studentID,
		GraphVersion: prereqs.Version(),
		GeneratedAt:  now,
	}

	order, ok := topoByRank(ranked, prereqs)
	if !ok {
		metrics.GraphInvalidConditions.Inc()
		g.logger.Error().
			Str("student_id", studentID).
			Str("graph_version", prereqs.Version()).
			Msg("Prerequisite ordering failed, falling back to rank order")
		order = ranked
		path.Degraded = true
	}

	placed := make(map[string]struct{}, len(order))
	skipped := make(map[string]struct{})

	for _, rg := range order {
		resources := perGap[rg.ConceptID]
		if len(resources) == 0 {
			continue
		}
		if dependsOnSkipped(rg.ConceptID, skipped, prereqs) {
			skipped[rg.ConceptID] = struct{}{}
			continue
		}

		conceptMinutes := 0
		for _, res := range resources {
			conceptMinutes += res.EstimatedMinutes
		}
		if prefs.TimeBudgetMinutes > 0 && path.TotalMinutes+conceptMinutes > prefs.TimeBudgetMinutes {
			skipped[rg.ConceptID] = struct{}{}
			continue
		}

		for _, res := range fillers[rg.ConceptID] {
			if _, ok := placed[res.ConceptID]; ok {
				continue
			}
			// A filler whose concept underpins an already-placed gap
			// would land after its dependent; leave it out.
			if placedDependsOn(res.ConceptID, placed, prereqs) {
				continue
			}
			if prefs.TimeBudgetMinutes > 0 && path.TotalMinutes+conceptMinutes+res.EstimatedMinutes > prefs.TimeBudgetMinutes {
				continue
			}
			path.Items = append(path.Items, Item{
				ID:                    uuid.NewString(),
				StudentID:             studentID,
				ConceptID:             res.ConceptID,
				ResourceID:            res.ID,
				ResourceType:          res.Type,
				Priority:              rg.Score * fillerPriorityFactor,
				PrerequisiteSatisfied: !path.Degraded && prereqsPlaced(res.ConceptID, ranked, placed, prereqs),
				EstimatedMinutes:      res.EstimatedMinutes,
				State:                 StateActive,
				CreatedAt:             now,
			})
			path.TotalMinutes += res.EstimatedMinutes
			placed[res.ConceptID] = struct{}{}
		}

		satisfied := !path.Degraded && prereqsPlaced(rg.ConceptID, ranked, placed, prereqs)
		for _, res := range resources {
			path.Items = append(path.Items, Item{
				ID:                    uuid.NewString(),
				StudentID:             studentID,
				ConceptID:             rg.ConceptID,
				GapSeverity:           rg.Severity,
				GapConfidence:         rg.Confidence,
				ResourceID:            res.ID,
				ResourceType:          res.Type,
				Priority:              rg.Score,
				PrerequisiteSatisfied: satisfied,
				EstimatedMinutes:      res.EstimatedMinutes,
				State:                 StateActive,
				CreatedAt:             now,
			})
		}
		path.TotalMinutes += conceptMinutes
		placed[rg.ConceptID] = struct{}{}
	}
	return path
}

// topoByRank orders gaps so every concept follows its in-set prerequisites,
// preferring rank order among the eligible. Returns ok=false when no
// eligible concept exists while gaps remain, which means the relation has a
// cycle.
func topoByRank(ranked []gap.RankedGap, prereqs PrereqSource) ([]gap.RankedGap, bool) {
	remaining := append([]gap.RankedGap(nil), ranked...)
	out := make([]gap.RankedGap, 0, len(ranked))

	for len(remaining) > 0 {
		pick := -1
		for i, rg := range remaining {
			if blockedBy(rg.ConceptID, remaining, i, prereqs) {
				continue
			}
			pick = i
			break
		}
		if pick == -1 {
			return nil, false
		}
		out = append(out, remaining[pick])
		remaining = append(remaining[:pick], remaining[pick+1:]...)
	}
	return out, true
}

// blockedBy reports whether any other remaining concept is a prerequisite
// of c.
func blockedBy(c string, remaining []gap.RankedGap, self int, prereqs PrereqSource) bool {
	for i, other := range remaining {
		if i == self {
			continue
		}
		if prereqs.IsPrerequisite(other.ConceptID, c) {
			return true
		}
	}
	return false
}

// placedDependsOn reports whether any already-placed concept has c as a
// prerequisite.
func placedDependsOn(c string, placed map[string]struct{}, prereqs PrereqSource) bool {
	for p := range placed {
		if prereqs.IsPrerequisite(c, p) {
			return true
		}
	}
	return false
}

// dependsOnSkipped reports whether c has a budget-skipped prerequisite.
func dependsOnSkipped(c string, skipped map[string]struct{}, prereqs PrereqSource) bool {
	for s := range skipped {
		if prereqs.IsPrerequisite(s, c) {
			return true
		}
	}
	return false
}

// prereqsPlaced reports whether every in-set prerequisite of c has already
// been placed on the path.
func prereqsPlaced(c string, ranked []gap.RankedGap, placed map[string]struct{}, prereqs PrereqSource) bool {
	for _, rg := range ranked {
		if rg.ConceptID == c {
			continue
		}
		if !prereqs.IsPrerequisite(rg.ConceptID, c) {
			continue
		}
		if _, ok := placed[rg.ConceptID]; !ok {
			return false
		}
	}
	return true
}
