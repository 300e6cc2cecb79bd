// Pathwise - Learning Gap Analysis and Recommendation Engine
// Copyright 2026 Pathwise contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pathwise/pathwise

package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/pathwise/pathwise/internal/concept"
	"github.com/pathwise/pathwise/internal/gap"
	"github.com/pathwise/pathwise/internal/recommend"
)

// validate is the shared validator instance; validator.Validate is
// concurrency-safe and caches struct metadata.
var validate = validator.New(validator.WithRequiredStructEnabled())

// maxRequestBody caps request payload size at 1 MiB.
const maxRequestBody = 1 << 20

// decodeRequest decodes and validates a JSON request body into dst.
// The returned fieldErrors is non-nil only for validation failures.
func decodeRequest(r *http.Request, dst interface{}) (fieldErrors map[string]string, err error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxRequestBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return nil, fmt.Errorf("decode request body: %w", err)
	}

	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[fe.Field()] = fe.Tag()
			}
			return fields, err
		}
		return nil, err
	}
	return nil, nil
}

// ingestCodeMetrics mirrors gap.CodeMetrics on the wire.
type ingestCodeMetrics struct {
	Complexity   int     `json:"complexity" validate:"min=0"`
	TestCoverage float64 `json:"test_coverage" validate:"min=0,max=1"`
	RuntimeMS    float64 `json:"runtime_ms" validate:"min=0"`
	PassedTests  int     `json:"passed_tests" validate:"min=0"`
	TotalTests   int     `json:"total_tests" validate:"min=0"`
}

// ingestItem is one graded item in an ingestion request.
type ingestItem struct {
	ItemID  string             `json:"item_id" validate:"required"`
	Quality float64            `json:"quality" validate:"min=0,max=1"`
	Tags    []string           `json:"tags"`
	Code    *ingestCodeMetrics `json:"code"`
}

// ingestEventRequest is the payload for POST /events.
type ingestEventRequest struct {
	EventID   string       `json:"event_id" validate:"required"`
	StudentID string       `json:"student_id" validate:"required"`
	Kind      string       `json:"kind" validate:"required,oneof=quiz code"`
	Timestamp time.Time    `json:"timestamp" validate:"required"`
	Items     []ingestItem `json:"items" validate:"required,min=1,dive"`
}

// toEvent converts the request payload into the domain event.
func (req ingestEventRequest) toEvent() gap.PerformanceEvent {
	items := make([]gap.ItemOutcome, 0, len(req.Items))
	for _, it := range req.Items {
		item := gap.ItemOutcome{
			ItemID:  it.ItemID,
			Quality: it.Quality,
			Tags:    it.Tags,
		}
		if it.Code != nil {
			item.Code = &gap.CodeMetrics{
				Complexity:   it.Code.Complexity,
				TestCoverage: it.Code.TestCoverage,
				RuntimeMS:    it.Code.RuntimeMS,
				PassedTests:  it.Code.PassedTests,
				TotalTests:   it.Code.TotalTests,
			}
		}
		items = append(items, item)
	}
	return gap.PerformanceEvent{
		EventID:   req.EventID,
		StudentID: req.StudentID,
		Kind:      gap.EventKind(req.Kind),
		Timestamp: req.Timestamp,
		Items:     items,
	}
}

// feedbackRequest is the payload for POST /recommendations/{id}/feedback.
type feedbackRequest struct {
	Completed bool     `json:"completed"`
	Rating    *float64 `json:"rating" validate:"omitempty,min=0,max=1"`
}

// preferencesRequest is the payload for PUT /students/{id}/preferences.
type preferencesRequest struct {
	PreferredTypes    []string `json:"preferred_types" validate:"dive,oneof=video article interactive quiz project tutorial book course"`
	Style             string   `json:"style" validate:"omitempty,oneof=visual auditory reading kinesthetic"`
	Difficulty        string   `json:"difficulty" validate:"omitempty,oneof=beginner intermediate advanced expert"`
	TimeBudgetMinutes int      `json:"time_budget_minutes" validate:"min=0"`
}

// toPreferences converts the request payload into domain preferences.
func (req preferencesRequest) toPreferences(studentID string) recommend.Preferences {
	types := make([]recommend.ResourceType, 0, len(req.PreferredTypes))
	for _, t := range req.PreferredTypes {
		types = append(types, recommend.ResourceType(t))
	}
	return recommend.Preferences{
		StudentID:         studentID,
		PreferredTypes:    types,
		Style:             recommend.LearningStyle(req.Style),
		Difficulty:        concept.Difficulty(req.Difficulty),
		TimeBudgetMinutes: req.TimeBudgetMinutes,
	}
}
