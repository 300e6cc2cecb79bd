// Pathwise - Learning Gap Analysis and Recommendation Engine
// Copyright 2026 Pathwise contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pathwise/pathwise

package gap

import (
	"fmt"
	"time"
)

// Config contains tunable parameters for the gap analysis pipeline.
// All defaults are tunable calibration values.
type Config struct {
	// MinRelevance is the minimum concept-mapping weight for an item
	// outcome to count as evidence. Sub-threshold mappings are discarded
	// to avoid diluting estimates with weak associations.
	// Default: 0.1
	MinRelevance float64 `json:"min_relevance" koanf:"min_relevance"`

	// HalfLife is the evidence recency half-life. On each accumulator
	// update, prior weighted sums are decayed by 0.5^(dt/half_life) so
	// stale mastery signals fade without being deleted.
	// Default: 720h (30 days)
	HalfLife time.Duration `json:"half_life" koanf:"half_life"`

	// ConfidenceK is the effective weighted-observation count required for
	// full confidence: confidence = min(1, total_weight / K).
	// Default: 8.0
	ConfidenceK float64 `json:"confidence_k" koanf:"confidence_k"`

	// ConfidenceFloor is the confidence below which a gap record is
	// flagged needs-more-data.
	// Default: 0.3
	ConfidenceFloor float64 `json:"confidence_floor" koanf:"confidence_floor"`

	// TopN is the number of ranked gaps handed to the recommendation
	// pipeline. Default: 5
	TopN int `json:"top_n" koanf:"top_n"`

	// MaxEvidenceRefs caps the supporting-evidence references kept per
	// gap record. Default: 20
	MaxEvidenceRefs int `json:"max_evidence_refs" koanf:"max_evidence_refs"`
}

// DefaultConfig returns the reference defaults.
func DefaultConfig() *Config {
	return &Config{
		MinRelevance:    0.1,
		HalfLife:        30 * 24 * time.Hour,
		ConfidenceK:     8.0,
		ConfidenceFloor: 0.3,
		TopN:            5,
		MaxEvidenceRefs: 20,
	}
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.MinRelevance < 0 || c.MinRelevance > 1 {
		return fmt.Errorf("min_relevance must be in [0, 1], got %v", c.MinRelevance)
	}
	if c.HalfLife <= 0 {
		return fmt.Errorf("half_life must be positive, got %v", c.HalfLife)
	}
	if c.ConfidenceK <= 0 {
		return fmt.Errorf("confidence_k must be positive, got %v", c.ConfidenceK)
	}
	if c.ConfidenceFloor < 0 || c.ConfidenceFloor > 1 {
		return fmt.Errorf("confidence_floor must be in [0, 1], got %v", c.ConfidenceFloor)
	}
	if c.TopN < 1 {
		return fmt.Errorf("top_n must be at least 1, got %d", c.TopN)
	}
	if c.MaxEvidenceRefs < 1 {
		return fmt.Errorf("max_evidence_refs must be at least 1, got %d", c.MaxEvidenceRefs)
	}
	return nil
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	out := *c
	return &out
}
