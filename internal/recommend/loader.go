// Pathwise - Learning Gap Analysis and Recommendation Engine
// Copyright 2026 Pathwise contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pathwise/pathwise

package recommend

import (
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/pathwise/pathwise/internal/concept"
)

// catalogFile is the on-disk resource catalog.
type catalogFile struct {
	Resources []resourceSpec `koanf:"resources"`
}

type resourceSpec struct {
	ID               string `koanf:"id"`
	ConceptID        string `koanf:"concept_id"`
	Title            string `koanf:"title"`
	Type             string `koanf:"type"`
	Difficulty       string `koanf:"difficulty"`
	EstimatedMinutes int    `koanf:"estimated_minutes"`
	URL              string `koanf:"url"`
}

// LoadResources reads the resource catalog from a YAML file. The result is
// handed to NewCatalog at startup.
func LoadResources(path string) ([]Resource, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("read resource catalog %s: %w", path, err)
	}

	var spec catalogFile
	if err := k.Unmarshal("", &spec); err != nil {
		return nil, fmt.Errorf("parse resource catalog %s: %w", path, err)
	}

	resources := make([]Resource, 0, len(spec.Resources))
	seen := make(map[string]struct{}, len(spec.Resources))
	for _, r := range spec.Resources {
		if r.ID == "" || r.ConceptID == "" {
			return nil, fmt.Errorf("resource catalog %s: resource without id or concept_id", path)
		}
		if _, dup := seen[r.ID]; dup {
			return nil, fmt.Errorf("resource catalog %s: duplicate resource id %q", path, r.ID)
		}
		seen[r.ID] = struct{}{}
		if r.EstimatedMinutes <= 0 {
			return nil, fmt.Errorf("resource catalog %s: resource %q needs a positive estimated_minutes", path, r.ID)
		}
		resources = append(resources, Resource{
			ID:               r.ID,
			ConceptID:        r.ConceptID,
			Title:            r.Title,
			Type:             ResourceType(r.Type),
			Difficulty:       concept.Difficulty(r.Difficulty),
			EstimatedMinutes: r.EstimatedMinutes,
			URL:              r.URL,
		})
	}
	return resources, nil
}
