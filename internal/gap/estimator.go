// Pathwise - Learning Gap Analysis and Recommendation Engine
// Copyright 2026 Pathwise contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pathwise/pathwise

package gap

import "time"

// ReferenceEstimator is the default ratio-based gap model.
//
// Severity is one minus the decayed success ratio, so a student who
// succeeds at everything scores 0 and one who fails everything scores 1.
// Confidence grows linearly with the decayed evidence mass and saturates at
// K effective observations. An accumulator with no effective evidence yields
// the maximally uncertain record: severity 0.5, confidence 0.
type ReferenceEstimator struct {
	// ConfidenceK is the effective weighted-observation count for full
	// confidence.
	ConfidenceK float64

	// ConfidenceFloor marks records below it needs-more-data.
	ConfidenceFloor float64
}

// NewReferenceEstimator builds the reference estimator from config.
func NewReferenceEstimator(cfg *Config) *ReferenceEstimator {
	return &ReferenceEstimator{
		ConfidenceK:     cfg.ConfidenceK,
		ConfidenceFloor: cfg.ConfidenceFloor,
	}
}

// Name implements Estimator.
func (e *ReferenceEstimator) Name() string { return "reference" }

// Estimate implements Estimator. The accumulator is expected to be decayed
// to now by the caller so recency affects both severity and confidence.
func (e *ReferenceEstimator) Estimate(acc Accumulator, prior *GapRecord, now time.Time) GapRecord {
	rec := GapRecord{
		StudentID: acc.StudentID,
		ConceptID: acc.ConceptID,
		UpdatedAt: now,
	}

	if acc.TotalSum <= 0 {
		// No effective evidence: unknown, not fine.
		rec.Severity = 0.5
		rec.Confidence = 0
	} else {
		rec.Severity = clamp01(1 - acc.SuccessSum/acc.TotalSum)
		rec.Confidence = clamp01(acc.TotalSum / e.ConfidenceK)
	}

	rec.NeedsMoreData = rec.Confidence < e.ConfidenceFloor

	if prior != nil {
		rec.Trend = prior.Severity - rec.Severity
		rec.HasTrend = true
	}
	return rec
}
