// Pathwise - Learning Gap Analysis and Recommendation Engine
// Copyright 2026 Pathwise contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pathwise/pathwise

// Package concept models the curriculum concept graph: a directed acyclic
// structure of learning concepts with prerequisite edges.
//
// The graph is read-mostly reference data. A Graph is immutable once built;
// curriculum updates produce a new versioned Graph which is swapped in
// atomically by the holder. NewGraph rejects any snapshot containing a cycle
// or a dangling prerequisite reference, so downstream consumers can rely on
// the DAG invariant.
package concept

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind classifies a learning concept.
type Kind string

const (
	KindFundamental   Kind = "fundamental"
	KindProcedural    Kind = "procedural"
	KindConceptual    Kind = "conceptual"
	KindMetacognitive Kind = "metacognitive"
)

// Difficulty is the curriculum-assigned difficulty of a concept.
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
	DifficultyExpert       Difficulty = "expert"
)

// Node is a single learning concept.
type Node struct {
	// ID is the unique concept identifier (e.g., "recursion").
	ID string `json:"id"`

	// Name is the human-readable concept name.
	Name string `json:"name"`

	// Description is a longer explanation of the concept.
	Description string `json:"description,omitempty"`

	// Kind classifies the concept.
	Kind Kind `json:"kind,omitempty"`

	// Difficulty is the curriculum-assigned difficulty level.
	Difficulty Difficulty `json:"difficulty,omitempty"`

	// Prerequisites lists concept IDs that must be mastered first.
	Prerequisites []string `json:"prerequisites,omitempty"`

	// Keywords are free-form tags used by the concept mapper.
	Keywords []string `json:"keywords,omitempty"`
}

// ErrGraphInvalid indicates the concept snapshot violates the DAG invariant.
// It wraps a description of the offending cycle or dangling reference.
var ErrGraphInvalid = errors.New("concept graph invalid")

// Graph is an immutable, versioned snapshot of the concept DAG.
type Graph struct {
	version string
	nodes   map[string]Node

	// dependents[c] lists concepts that declare c as a direct prerequisite.
	dependents map[string][]string

	// impact[c] is the number of transitive dependents of c.
	impact map[string]int
}

// NewGraph builds a validated graph from a concept snapshot.
// It returns an error wrapping ErrGraphInvalid if the snapshot contains a
// cycle or a prerequisite referencing an unknown concept.
func NewGraph(version string, nodes []Node) (*Graph, error) {
	g := &Graph{
		version:    version,
		nodes:      make(map[string]Node, len(nodes)),
		dependents: make(map[string][]string),
	}

	for _, n := range nodes {
		if n.ID == "" {
			return nil, fmt.Errorf("%w: node with empty id", ErrGraphInvalid)
		}
		if _, dup := g.nodes[n.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate concept %q", ErrGraphInvalid, n.ID)
		}
		g.nodes[n.ID] = n
	}

	for id, n := range g.nodes {
		for _, pre := range n.Prerequisites {
			if _, ok := g.nodes[pre]; !ok {
				return nil, fmt.Errorf("%w: concept %q references unknown prerequisite %q", ErrGraphInvalid, id, pre)
			}
			g.dependents[pre] = append(g.dependents[pre], id)
		}
	}

	// Deterministic dependent order
	for pre := range g.dependents {
		sort.Strings(g.dependents[pre])
	}

	if cycle := g.findCycle(); cycle != nil {
		return nil, fmt.Errorf("%w: prerequisite cycle %s", ErrGraphInvalid, strings.Join(cycle, " -> "))
	}

	g.impact = g.computeImpact()
	return g, nil
}

// Version returns the snapshot version identifier.
func (g *Graph) Version() string {
	return g.version
}

// Len returns the number of concepts in the graph.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Node returns the concept with the given id.
func (g *Graph) Node(id string) (Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Contains reports whether the concept exists in the graph.
func (g *Graph) Contains(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// IDs returns all concept ids in sorted order.
func (g *Graph) IDs() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Prerequisites returns the direct prerequisites of a concept.
func (g *Graph) Prerequisites(id string) []string {
	return g.nodes[id].Prerequisites
}

// Dependents returns the concepts that directly depend on the given concept.
func (g *Graph) Dependents(id string) []string {
	return g.dependents[id]
}

// ImpactWeight returns the number of transitive dependents of a concept.
// Concepts with more dependents unblock more of the graph when resolved.
func (g *Graph) ImpactWeight(id string) int {
	return g.impact[id]
}

// IsPrerequisite reports whether a is a (possibly transitive) prerequisite
// of b.
func (g *Graph) IsPrerequisite(a, b string) bool {
	if a == b {
		return false
	}
	seen := make(map[string]struct{})
	stack := append([]string(nil), g.nodes[b].Prerequisites...)
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur == a {
			return true
		}
		if _, ok := seen[cur]; ok {
			continue
		}
		seen[cur] = struct{}{}
		stack = append(stack, g.nodes[cur].Prerequisites...)
	}
	return false
}

// Closure returns the given concepts plus their full prerequisite closure,
// in sorted order.
func (g *Graph) Closure(ids []string) []string {
	seen := make(map[string]struct{})
	stack := append([]string(nil), ids...)
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := seen[cur]; ok {
			continue
		}
		if !g.Contains(cur) {
			continue
		}
		seen[cur] = struct{}{}
		stack = append(stack, g.nodes[cur].Prerequisites...)
	}

	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// findCycle returns a cycle path if one exists, nil otherwise.
// Iterative DFS with three-color marking over prerequisite edges.
func (g *Graph) findCycle() []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(g.nodes))
	parent := make(map[string]string)

	ids := g.IDs() // deterministic traversal order
	for _, start := range ids {
		if color[start] != white {
			continue
		}

		type frame struct {
			id   string
			next int
		}
		stack := []frame{{id: start}}
		color[start] = gray

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			prereqs := g.nodes[top.id].Prerequisites
			if top.next < len(prereqs) {
				child := prereqs[top.next]
				top.next++
				switch color[child] {
				case white:
					color[child] = gray
					parent[child] = top.id
					stack = append(stack, frame{id: child})
				case gray:
					// Reconstruct the cycle from child back to child.
					cycle := []string{child}
					for cur := top.id; cur != child; cur = parent[cur] {
						cycle = append(cycle, cur)
					}
					cycle = append(cycle, child)
					// Reverse into edge order.
					for i, j := 0, len(cycle)-1; i < j; i, j = i+1, j-1 {
						cycle[i], cycle[j] = cycle[j], cycle[i]
					}
					return cycle
				}
			} else {
				color[top.id] = black
				stack = stack[:len(stack)-1]
			}
		}
	}
	return nil
}

// computeImpact counts transitive dependents per concept.
func (g *Graph) computeImpact() map[string]int {
	impact := make(map[string]int, len(g.nodes))
	for id := range g.nodes {
		seen := make(map[string]struct{})
		stack := append([]string(nil), g.dependents[id]...)
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if _, ok := seen[cur]; ok {
				continue
			}
			seen[cur] = struct{}{}
			stack = append(stack, g.dependents[cur]...)
		}
		impact[id] = len(seen)
	}
	return impact
}
