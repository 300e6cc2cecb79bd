// Pathwise - Learning Gap Analysis and Recommendation Engine
// Copyright 2026 Pathwise contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pathwise/pathwise

package concept

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeGraphFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "concepts.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write graph file: %v", err)
	}
	return path
}

func TestLoadGraph(t *testing.T) {
	path := writeGraphFile(t, `
version: "2026-03-01"
concepts:
  - id: python_basics
    name: Python Basics
    kind: fundamental
    difficulty: beginner
  - id: loops
    name: Loops
    kind: procedural
    difficulty: beginner
    prerequisites: [python_basics]
    keywords: [for, while, iteration]
`)

	g, err := LoadGraph(path)
	if err != nil {
		t.Fatalf("LoadGraph() error = %v", err)
	}
	if g.Version() != "2026-03-01" {
		t.Errorf("Version() = %q, want 2026-03-01", g.Version())
	}
	if g.Len() != 2 {
		t.Errorf("Len() = %d, want 2", g.Len())
	}
	node, ok := g.Node("loops")
	if !ok {
		t.Fatal("loops missing from graph")
	}
	if node.Difficulty != DifficultyBeginner || len(node.Keywords) != 3 {
		t.Errorf("loops node = %+v", node)
	}
	if !g.IsPrerequisite("python_basics", "loops") {
		t.Error("prerequisite edge lost in load")
	}
}

func TestLoadGraph_MissingVersion(t *testing.T) {
	path := writeGraphFile(t, `
concepts:
  - id: loops
    name: Loops
`)
	if _, err := LoadGraph(path); !errors.Is(err, ErrGraphInvalid) {
		t.Errorf("LoadGraph() error = %v, want ErrGraphInvalid", err)
	}
}

func TestLoadGraph_CycleRejected(t *testing.T) {
	path := writeGraphFile(t, `
version: v1
concepts:
  - id: a
    name: A
    prerequisites: [b]
  - id: b
    name: B
    prerequisites: [a]
`)
	if _, err := LoadGraph(path); !errors.Is(err, ErrGraphInvalid) {
		t.Errorf("LoadGraph() error = %v, want ErrGraphInvalid", err)
	}
}

func TestLoadGraph_FileMissing(t *testing.T) {
	if _, err := LoadGraph(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("LoadGraph(absent) error = nil, want read failure")
	}
}
