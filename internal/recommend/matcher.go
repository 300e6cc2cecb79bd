// Pathwise - Learning Gap Analysis and Recommendation Engine
// Copyright 2026 Pathwise contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pathwise/pathwise

package recommend

import (
	"sort"

	"github.com/pathwise/pathwise/internal/concept"
	"github.com/pathwise/pathwise/internal/gap"
)

// difficultyRank orders difficulty levels for the ±1 preference window.
var difficultyRank = map[concept.Difficulty]int{
	concept.DifficultyBeginner:     0,
	concept.DifficultyIntermediate: 1,
	concept.DifficultyAdvanced:     2,
	concept.DifficultyExpert:       3,
}

// Matcher selects candidate resources per gap from the catalog, honoring
// student preferences and excluding resources the student already found
// ineffective.
type Matcher struct {
	cfg     *Config
	catalog *Catalog
}

// NewMatcher creates a matcher over the given catalog.
func NewMatcher(cfg *Config, catalog *Catalog) *Matcher {
	return &Matcher{cfg: cfg, catalog: catalog}
}

// scored pairs a resource with its candidate score.
type scored struct {
	res   Resource
	score float64
}

// Match returns up to MaxPerGap resources for one ranked gap, strongest
// first. exclude holds resource ids previously rated ineffective by this
// student.
//
// When the concept's catalog offers at least MinTypes distinct resource
// types, the selection includes at least that many; variety beats a
// marginally higher score for the later slots.
func (m *Matcher) Match(g gap.RankedGap, prefs Preferences, exclude map[string]struct{}) []Resource {
	candidates := m.candidates(g, prefs, exclude)
	if len(candidates) == 0 {
		return nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].res.ID < candidates[j].res.ID
	})

	return m.diversify(candidates)
}

// candidates scores the eligible resources for a gap.
func (m *Matcher) candidates(g gap.RankedGap, prefs Preferences, exclude map[string]struct{}) []scored {
	var out []scored
	for _, res := range m.catalog.ForConcept(g.ConceptID) {
		if _, skip := exclude[res.ID]; skip {
			continue
		}
		if !difficultyEligible(res.Difficulty, prefs.Difficulty) {
			continue
		}

		score := g.Score
		if score <= 0 {
			score = g.Priority()
		}
		if score <= 0 {
			score = 0.01 // keep needs-more-data gaps matchable
		}
		if prefs.PrefersType(res.Type) {
			score *= m.cfg.TypeBoost
		}
		if prefs.Style != "" && prefs.Style.Matches(res.Type) {
			score *= m.cfg.StyleBoost
		}
		out = append(out, scored{res: res, score: score})
	}
	return out
}

// diversify takes the top candidates while enforcing the type-diversity
// floor: if the pool offers MinTypes distinct types, so must the selection.
func (m *Matcher) diversify(candidates []scored) []Resource {
	poolTypes := make(map[ResourceType]struct{})
	for _, c := range candidates {
		poolTypes[c.res.Type] = struct{}{}
	}
	wantTypes := m.cfg.MinTypes
	if len(poolTypes) < wantTypes {
		wantTypes = len(poolTypes)
	}

	selected := make([]Resource, 0, m.cfg.MaxPerGap)
	seenTypes := make(map[ResourceType]struct{})
	used := make(map[string]struct{})

	for _, c := range candidates {
		if len(selected) == m.cfg.MaxPerGap {
			break
		}
		// Reserve trailing slots for unseen types until the floor is met.
		slotsLeft := m.cfg.MaxPerGap - len(selected)
		typesNeeded := wantTypes - len(seenTypes)
		if _, seen := seenTypes[c.res.Type]; seen && slotsLeft <= typesNeeded {
			continue
		}
		selected = append(selected, c.res)
		seenTypes[c.res.Type] = struct{}{}
		used[c.res.ID] = struct{}{}
	}

	// Backfill remaining slots with the best skipped candidates.
	for _, c := range candidates {
		if len(selected) == m.cfg.MaxPerGap {
			break
		}
		if _, ok := used[c.res.ID]; ok {
			continue
		}
		selected = append(selected, c.res)
		used[c.res.ID] = struct{}{}
	}
	return selected
}

// difficultyEligible reports whether a resource difficulty falls within one
// level of the preferred difficulty. An empty preference or an unknown level
// on either side disables the filter for that resource.
func difficultyEligible(res, pref concept.Difficulty) bool {
	if pref == "" || res == "" {
		return true
	}
	r, okR := difficultyRank[res]
	p, okP := difficultyRank[pref]
	if !okR || !okP {
		return true
	}
	diff := r - p
	return diff >= -1 && diff <= 1
}
