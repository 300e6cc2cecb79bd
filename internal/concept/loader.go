// Pathwise - Learning Gap Analysis and Recommendation Engine
// Copyright 2026 Pathwise contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pathwise/pathwise

package concept

import (
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// graphFile is the on-disk concept graph snapshot.
type graphFile struct {
	Version  string     `koanf:"version"`
	Concepts []nodeSpec `koanf:"concepts"`
}

type nodeSpec struct {
	ID            string   `koanf:"id"`
	Name          string   `koanf:"name"`
	Description   string   `koanf:"description"`
	Kind          string   `koanf:"kind"`
	Difficulty    string   `koanf:"difficulty"`
	Prerequisites []string `koanf:"prerequisites"`
	Keywords      []string `koanf:"keywords"`
}

// LoadGraph reads a concept graph snapshot from a YAML file and validates
// it. The snapshot must carry a version identifier; gap records and paths
// reference it so results can be traced to the graph they were computed
// against.
func LoadGraph(path string) (*Graph, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("read concept graph %s: %w", path, err)
	}

	var spec graphFile
	if err := k.Unmarshal("", &spec); err != nil {
		return nil, fmt.Errorf("parse concept graph %s: %w", path, err)
	}
	if spec.Version == "" {
		return nil, fmt.Errorf("%w: snapshot %s has no version", ErrGraphInvalid, path)
	}

	nodes := make([]Node, 0, len(spec.Concepts))
	for _, n := range spec.Concepts {
		nodes = append(nodes, Node{
			ID:            n.ID,
			Name:          n.Name,
			Description:   n.Description,
			Kind:          Kind(n.Kind),
			Difficulty:    Difficulty(n.Difficulty),
			Prerequisites: n.Prerequisites,
			Keywords:      n.Keywords,
		})
	}
	return NewGraph(spec.Version, nodes)
}
