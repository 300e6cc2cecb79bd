// Pathwise - Learning Gap Analysis and Recommendation Engine
// Copyright 2026 Pathwise contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pathwise/pathwise

package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the shared validator instance; stateless and safe for
// concurrent use.
var validate = validator.New()

// Validate checks the configuration for invariant violations. Called by
// Load; exported so tests and embedders can validate hand-built configs.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in [1, 65535], got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("server.timeout must be positive, got %v", c.Server.Timeout)
	}
	if !c.Server.RateLimitDisabled {
		if c.Server.RateLimitReqs < 1 {
			return fmt.Errorf("server.rate_limit_reqs must be at least 1, got %d", c.Server.RateLimitReqs)
		}
		if c.Server.RateLimitWindow <= 0 {
			return fmt.Errorf("server.rate_limit_window must be positive, got %v", c.Server.RateLimitWindow)
		}
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path must not be empty")
	}
	if c.Snapshot.Path == "" {
		return fmt.Errorf("snapshot.path must not be empty")
	}
	if c.Snapshot.FreshnessWindow <= 0 {
		return fmt.Errorf("snapshot.freshness_window must be positive, got %v", c.Snapshot.FreshnessWindow)
	}

	if err := validateEngine(&c.Engine); err != nil {
		return err
	}
	if err := validateRecommend(&c.Recommend); err != nil {
		return err
	}

	if c.Recompute.Workers < 1 {
		return fmt.Errorf("recompute.workers must be at least 1, got %d", c.Recompute.Workers)
	}
	if c.Recompute.QueueSize < 1 {
		return fmt.Errorf("recompute.queue_size must be at least 1, got %d", c.Recompute.QueueSize)
	}
	if c.Recompute.RatePerSecond <= 0 {
		return fmt.Errorf("recompute.rate_per_second must be positive, got %v", c.Recompute.RatePerSecond)
	}

	if c.Ingest.Topic == "" {
		return fmt.Errorf("ingest.topic must not be empty")
	}

	if err := validate.Var(c.Logging.Level, "oneof=trace debug info warn error fatal panic"); err != nil {
		return fmt.Errorf("logging.level %q invalid: %w", c.Logging.Level, err)
	}
	if err := validate.Var(c.Logging.Format, "oneof=json console"); err != nil {
		return fmt.Errorf("logging.format %q invalid: %w", c.Logging.Format, err)
	}
	return nil
}

func validateEngine(e *EngineConfig) error {
	if e.MinRelevance < 0 || e.MinRelevance > 1 {
		return fmt.Errorf("engine.min_relevance must be in [0, 1], got %v", e.MinRelevance)
	}
	if e.HalfLife <= 0 {
		return fmt.Errorf("engine.half_life must be positive, got %v", e.HalfLife)
	}
	if e.ConfidenceK <= 0 {
		return fmt.Errorf("engine.confidence_k must be positive, got %v", e.ConfidenceK)
	}
	if e.ConfidenceFloor < 0 || e.ConfidenceFloor > 1 {
		return fmt.Errorf("engine.confidence_floor must be in [0, 1], got %v", e.ConfidenceFloor)
	}
	if e.TopN < 1 {
		return fmt.Errorf("engine.top_n must be at least 1, got %d", e.TopN)
	}
	return nil
}

func validateRecommend(r *RecommendConfig) error {
	if r.MaxPerGap < 1 {
		return fmt.Errorf("recommend.max_per_gap must be at least 1, got %d", r.MaxPerGap)
	}
	if r.MinTypes < 1 || r.MinTypes > r.MaxPerGap {
		return fmt.Errorf("recommend.min_types must be in [1, max_per_gap], got %d", r.MinTypes)
	}
	if r.IneffectiveBelow < 0 || r.IneffectiveBelow > 1 {
		return fmt.Errorf("recommend.ineffective_below must be in [0, 1], got %v", r.IneffectiveBelow)
	}
	return nil
}
