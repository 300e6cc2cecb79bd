// Pathwise - Learning Gap Analysis and Recommendation Engine
// Copyright 2026 Pathwise contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pathwise/pathwise

package recommend

import "fmt"

// Config contains tunable parameters for the recommendation pipeline.
type Config struct {
	// MaxPerGap caps the resources recommended per gap concept.
	// Default: 3
	MaxPerGap int `json:"max_per_gap" koanf:"max_per_gap"`

	// MinTypes is the resource-type diversity floor per gap: when the
	// catalog offers at least this many types for a concept, the selection
	// must include at least this many. Default: 2
	MinTypes int `json:"min_types" koanf:"min_types"`

	// StyleBoost multiplies the score of resources matching the student's
	// learning style. Default: 1.2
	StyleBoost float64 `json:"style_boost" koanf:"style_boost"`

	// TypeBoost multiplies the score of resources of a preferred type.
	// Default: 1.15
	TypeBoost float64 `json:"type_boost" koanf:"type_boost"`

	// IneffectiveBelow is the effectiveness rating at or under which a
	// completed resource is excluded from future recommendations for that
	// student. Default: 0.3
	IneffectiveBelow float64 `json:"ineffective_below" koanf:"ineffective_below"`

	// CorrectiveWeight is the evidence weight of feedback-derived signals
	// fed back into gap aggregation. Default: 0.5
	CorrectiveWeight float64 `json:"corrective_weight" koanf:"corrective_weight"`
}

// DefaultConfig returns the reference defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxPerGap:        3,
		MinTypes:         2,
		StyleBoost:       1.2,
		TypeBoost:        1.15,
		IneffectiveBelow: 0.3,
		CorrectiveWeight: 0.5,
	}
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.MaxPerGap < 1 {
		return fmt.Errorf("max_per_gap must be at least 1, got %d", c.MaxPerGap)
	}
	if c.MinTypes < 1 {
		return fmt.Errorf("min_types must be at least 1, got %d", c.MinTypes)
	}
	if c.MinTypes > c.MaxPerGap {
		return fmt.Errorf("min_types (%d) cannot exceed max_per_gap (%d)", c.MinTypes, c.MaxPerGap)
	}
	if c.StyleBoost < 1 {
		return fmt.Errorf("style_boost must be at least 1, got %v", c.StyleBoost)
	}
	if c.TypeBoost < 1 {
		return fmt.Errorf("type_boost must be at least 1, got %v", c.TypeBoost)
	}
	if c.IneffectiveBelow < 0 || c.IneffectiveBelow > 1 {
		return fmt.Errorf("ineffective_below must be in [0, 1], got %v", c.IneffectiveBelow)
	}
	if c.CorrectiveWeight <= 0 {
		return fmt.Errorf("corrective_weight must be positive, got %v", c.CorrectiveWeight)
	}
	return nil
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	out := *c
	return &out
}
