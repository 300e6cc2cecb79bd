// Pathwise - Learning Gap Analysis and Recommendation Engine
// Copyright 2026 Pathwise contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pathwise/pathwise

package concept

import (
	"errors"
	"reflect"
	"testing"
)

// curriculum mirrors the dependency structure of an introductory
// programming course.
func curriculum() []Node {
	return []Node{
		{ID: "python_basics", Name: "Python Basics", Kind: KindFundamental, Difficulty: DifficultyBeginner},
		{ID: "functions", Name: "Functions", Prerequisites: []string{"python_basics"}},
		{ID: "loops", Name: "Loops", Prerequisites: []string{"python_basics"}},
		{ID: "data_structures", Name: "Data Structures", Prerequisites: []string{"python_basics", "functions"}},
		{ID: "recursion", Name: "Recursion", Prerequisites: []string{"functions"}},
		{ID: "algorithms", Name: "Algorithms", Prerequisites: []string{"data_structures", "loops"}},
	}
}

func mustGraph(t *testing.T, nodes []Node) *Graph {
	t.Helper()
	g, err := NewGraph("v1", nodes)
	if err != nil {
		t.Fatalf("NewGraph() error = %v", err)
	}
	return g
}

func TestNewGraph_Validation(t *testing.T) {
	tests := []struct {
		name    string
		nodes   []Node
		wantErr bool
	}{
		{
			name:    "valid DAG",
			nodes:   curriculum(),
			wantErr: false,
		},
		{
			name:    "empty graph",
			nodes:   nil,
			wantErr: false,
		},
		{
			name: "self cycle",
			nodes: []Node{
				{ID: "a", Prerequisites: []string{"a"}},
			},
			wantErr: true,
		},
		{
			name: "two node cycle",
			nodes: []Node{
				{ID: "a", Prerequisites: []string{"b"}},
				{ID: "b", Prerequisites: []string{"a"}},
			},
			wantErr: true,
		},
		{
			name: "long cycle",
			nodes: []Node{
				{ID: "a", Prerequisites: []string{"c"}},
				{ID: "b", Prerequisites: []string{"a"}},
				{ID: "c", Prerequisites: []string{"b"}},
				{ID: "d"},
			},
			wantErr: true,
		},
		{
			name: "dangling prerequisite",
			nodes: []Node{
				{ID: "a", Prerequisites: []string{"missing"}},
			},
			wantErr: true,
		},
		{
			name: "duplicate concept id",
			nodes: []Node{
				{ID: "a"},
				{ID: "a"},
			},
			wantErr: true,
		},
		{
			name: "empty id",
			nodes: []Node{
				{ID: ""},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGraph("v1", tt.nodes)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewGraph() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrGraphInvalid) {
				t.Errorf("error %v does not wrap ErrGraphInvalid", err)
			}
		})
	}
}

func TestGraph_IsPrerequisite(t *testing.T) {
	g := mustGraph(t, curriculum())

	tests := []struct {
		a, b string
		want bool
	}{
		{"python_basics", "functions", true},
		{"python_basics", "algorithms", true}, // transitive
		{"functions", "recursion", true},
		{"functions", "loops", false},
		{"recursion", "functions", false}, // direction matters
		{"loops", "loops", false},         // never its own prerequisite
	}

	for _, tt := range tests {
		if got := g.IsPrerequisite(tt.a, tt.b); got != tt.want {
			t.Errorf("IsPrerequisite(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestGraph_Closure(t *testing.T) {
	g := mustGraph(t, curriculum())

	got := g.Closure([]string{"algorithms"})
	want := []string{"algorithms", "data_structures", "functions", "loops", "python_basics"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Closure(algorithms) = %v, want %v", got, want)
	}

	// Unknown ids are skipped, not an error.
	got = g.Closure([]string{"recursion", "nonexistent"})
	want = []string{"functions", "python_basics", "recursion"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Closure(recursion, nonexistent) = %v, want %v", got, want)
	}
}

func TestGraph_ImpactWeight(t *testing.T) {
	g := mustGraph(t, curriculum())

	tests := []struct {
		id   string
		want int
	}{
		{"python_basics", 5}, // everything depends on it
		{"functions", 3},     // data_structures, recursion, algorithms
		{"loops", 1},         // algorithms
		{"algorithms", 0},    // leaf
		{"recursion", 0},
	}

	for _, tt := range tests {
		if got := g.ImpactWeight(tt.id); got != tt.want {
			t.Errorf("ImpactWeight(%q) = %d, want %d", tt.id, got, tt.want)
		}
	}
}

func TestGraph_Dependents(t *testing.T) {
	g := mustGraph(t, curriculum())

	got := g.Dependents("functions")
	want := []string{"data_structures", "recursion"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Dependents(functions) = %v, want %v", got, want)
	}
}
