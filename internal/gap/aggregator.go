// Pathwise - Learning Gap Analysis and Recommendation Engine
// Copyright 2026 Pathwise contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pathwise/pathwise

package gap

import (
	"fmt"
	"math"
	"time"
)

// Aggregator folds mapped evidence into per-(student, concept) accumulators
// with exponential recency decay. It is a pure state-transition function:
// it owns no storage, the engine loads and persists accumulators around it.
//
// Decay happens lazily at application time. Before new evidence is added,
// the prior sums are multiplied by 0.5^(dt/half_life) where dt is the time
// since the accumulator's last update. Old evidence therefore loses weight
// without ever being rewritten.
type Aggregator struct {
	halfLife time.Duration
}

// NewAggregator creates an aggregator with the given recency half-life.
func NewAggregator(halfLife time.Duration) *Aggregator {
	return &Aggregator{halfLife: halfLife}
}

// Apply folds one piece of evidence into an accumulator and returns the
// updated value. Evidence must arrive in increasing timestamp order per
// (student, concept); out-of-order evidence returns ErrOutOfOrderEvidence
// and leaves the accumulator unchanged.
func (a *Aggregator) Apply(acc Accumulator, ev Evidence) (Accumulator, error) {
	if acc.Observations > 0 && ev.Timestamp.Before(acc.LastUpdated) {
		return acc, fmt.Errorf("%w: evidence %s at %s, accumulator at %s",
			ErrOutOfOrderEvidence, ev.EventID,
			ev.Timestamp.Format(time.RFC3339), acc.LastUpdated.Format(time.RFC3339))
	}

	out := a.DecayTo(acc, ev.Timestamp)
	out.Observations++
	out.SuccessSum += ev.Weight * ev.Quality
	out.TotalSum += ev.Weight
	out.LastUpdated = ev.Timestamp
	return out, nil
}

// DecayTo returns the accumulator with its sums decayed to the given time.
// Times at or before LastUpdated return the accumulator unchanged; decay
// never runs backwards.
func (a *Aggregator) DecayTo(acc Accumulator, now time.Time) Accumulator {
	if acc.Observations == 0 || !now.After(acc.LastUpdated) {
		return acc
	}
	factor := math.Pow(0.5, now.Sub(acc.LastUpdated).Hours()/a.halfLife.Hours())
	acc.SuccessSum *= factor
	acc.TotalSum *= factor
	return acc
}
