// Pathwise - Learning Gap Analysis and Recommendation Engine
// Copyright 2026 Pathwise contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pathwise/pathwise

package recommend

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pathwise/pathwise/internal/concept"
)

func writeCatalogFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write catalog file: %v", err)
	}
	return path
}

func TestLoadResources(t *testing.T) {
	path := writeCatalogFile(t, `
resources:
  - id: r1
    concept_id: loops
    title: Loop Fundamentals
    type: video
    difficulty: beginner
    estimated_minutes: 20
    url: https://example.com/loops
  - id: r2
    concept_id: loops
    title: Loop Exercises
    type: interactive
    difficulty: intermediate
    estimated_minutes: 30
`)

	resources, err := LoadResources(path)
	if err != nil {
		t.Fatalf("LoadResources() error = %v", err)
	}
	if len(resources) != 2 {
		t.Fatalf("len(resources) = %d, want 2", len(resources))
	}
	if resources[0].Type != TypeVideo || resources[0].Difficulty != concept.DifficultyBeginner {
		t.Errorf("resource[0] = %+v", resources[0])
	}

	catalog := NewCatalog(resources)
	if got := catalog.ForConcept("loops"); len(got) != 2 {
		t.Errorf("ForConcept(loops) = %d resources, want 2", len(got))
	}
}

func TestLoadResources_DuplicateID(t *testing.T) {
	path := writeCatalogFile(t, `
resources:
  - id: r1
    concept_id: loops
    type: video
    estimated_minutes: 20
  - id: r1
    concept_id: functions
    type: article
    estimated_minutes: 10
`)
	if _, err := LoadResources(path); err == nil {
		t.Error("LoadResources() error = nil, want duplicate rejection")
	}
}

func TestLoadResources_NonPositiveMinutes(t *testing.T) {
	path := writeCatalogFile(t, `
resources:
  - id: r1
    concept_id: loops
    type: video
    estimated_minutes: 0
`)
	if _, err := LoadResources(path); err == nil {
		t.Error("LoadResources() error = nil, want minutes rejection")
	}
}
