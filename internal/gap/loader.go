// Pathwise - Learning Gap Analysis and Recommendation Engine
// Copyright 2026 Pathwise contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pathwise/pathwise

package gap

import (
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// mappingFile is the on-disk item-to-concept mapping table.
type mappingFile struct {
	Mappings   map[string][]conceptWeightSpec `koanf:"mappings"`
	Thresholds map[string]codeThresholdSpec   `koanf:"thresholds"`
}

type conceptWeightSpec struct {
	ConceptID string  `koanf:"concept_id"`
	Weight    float64 `koanf:"weight"`
}

type codeThresholdSpec struct {
	MaxComplexity int     `koanf:"max_complexity"`
	MinCoverage   float64 `koanf:"min_coverage"`
}

// LoadMappingTable reads the item-to-concept mapping table and the
// per-concept code thresholds from a YAML file.
func LoadMappingTable(path string) (MappingTable, map[string]CodeThreshold, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, nil, fmt.Errorf("read mapping table %s: %w", path, err)
	}

	var spec mappingFile
	if err := k.Unmarshal("", &spec); err != nil {
		return nil, nil, fmt.Errorf("parse mapping table %s: %w", path, err)
	}

	table := make(MappingTable, len(spec.Mappings))
	for itemID, weights := range spec.Mappings {
		if itemID == "" {
			return nil, nil, fmt.Errorf("mapping table %s: empty item id", path)
		}
		cws := make([]ConceptWeight, 0, len(weights))
		for _, w := range weights {
			if w.ConceptID == "" {
				return nil, nil, fmt.Errorf("mapping table %s: item %q maps to empty concept id", path, itemID)
			}
			if w.Weight < 0 || w.Weight > 1 {
				return nil, nil, fmt.Errorf("mapping table %s: item %q weight %v outside [0, 1]", path, itemID, w.Weight)
			}
			cws = append(cws, ConceptWeight{ConceptID: w.ConceptID, Weight: w.Weight})
		}
		table[itemID] = cws
	}

	thresholds := make(map[string]CodeThreshold, len(spec.Thresholds))
	for conceptID, th := range spec.Thresholds {
		thresholds[conceptID] = CodeThreshold{
			MaxComplexity: th.MaxComplexity,
			MinCoverage:   th.MinCoverage,
		}
	}
	return table, thresholds, nil
}
