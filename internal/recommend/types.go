// Pathwise - Learning Gap Analysis and Recommendation Engine
// Copyright 2026 Pathwise contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pathwise/pathwise

package recommend

import (
	"time"

	"github.com/pathwise/pathwise/internal/concept"
)

// ResourceType classifies a learning resource.
type ResourceType string

const (
	TypeVideo       ResourceType = "video"
	TypeArticle     ResourceType = "article"
	TypeInteractive ResourceType = "interactive"
	TypeQuiz        ResourceType = "quiz"
	TypeProject     ResourceType = "project"
	TypeTutorial    ResourceType = "tutorial"
	TypeBook        ResourceType = "book"
	TypeCourse      ResourceType = "course"
)

// LearningStyle is a student's self-reported learning-style tag.
type LearningStyle string

const (
	StyleVisual      LearningStyle = "visual"
	StyleAuditory    LearningStyle = "auditory"
	StyleReading     LearningStyle = "reading"
	StyleKinesthetic LearningStyle = "kinesthetic"
)

// styleAffinity lists the resource types a learning style favors. Matching
// resources receive a fixed score boost during candidate scoring.
var styleAffinity = map[LearningStyle][]ResourceType{
	StyleVisual:      {TypeVideo, TypeInteractive},
	StyleAuditory:    {TypeVideo, TypeCourse},
	StyleReading:     {TypeArticle, TypeBook, TypeTutorial},
	StyleKinesthetic: {TypeInteractive, TypeProject, TypeQuiz},
}

// Matches reports whether the style favors the resource type.
func (s LearningStyle) Matches(rt ResourceType) bool {
	for _, t := range styleAffinity[s] {
		if t == rt {
			return true
		}
	}
	return false
}

// Resource is one learning resource in the catalog.
type Resource struct {
	// ID is the unique resource identifier.
	ID string `json:"id"`

	// ConceptID is the concept this resource teaches.
	ConceptID string `json:"concept_id"`

	// Title is the human-readable resource title.
	Title string `json:"title"`

	// Type classifies the resource.
	Type ResourceType `json:"type"`

	// Difficulty is the resource's difficulty level.
	Difficulty concept.Difficulty `json:"difficulty"`

	// EstimatedMinutes is the expected completion time.
	EstimatedMinutes int `json:"estimated_minutes"`

	// URL points at the resource content.
	URL string `json:"url,omitempty"`
}

// Preferences holds one student's recommendation preferences.
type Preferences struct {
	StudentID string `json:"student_id"`

	// PreferredTypes lists resource types the student favors. Empty means
	// no type preference.
	PreferredTypes []ResourceType `json:"preferred_types,omitempty"`

	// Style is the student's learning-style tag, empty when unknown.
	Style LearningStyle `json:"style,omitempty"`

	// Difficulty is the preferred difficulty level. Resources within one
	// level of it are eligible; empty means no difficulty filter.
	Difficulty concept.Difficulty `json:"difficulty,omitempty"`

	// TimeBudgetMinutes caps the total estimated time of a learning path.
	// Zero means unconstrained.
	TimeBudgetMinutes int `json:"time_budget_minutes"`
}

// PrefersType reports whether the student listed the type as preferred.
func (p Preferences) PrefersType(rt ResourceType) bool {
	for _, t := range p.PreferredTypes {
		if t == rt {
			return true
		}
	}
	return false
}

// ItemState is the lifecycle state of a recommendation item.
type ItemState string

const (
	// StateActive is a live recommendation awaiting completion.
	StateActive ItemState = "active"
	// StateCompleted marks a recommendation the student finished.
	StateCompleted ItemState = "completed"
	// StateRetired marks a recommendation superseded by a regenerated set.
	// Retired items are kept for effectiveness analytics, never mutated.
	StateRetired ItemState = "retired"
)

// Item is one recommended resource targeting one gap.
type Item struct {
	// ID is the unique recommendation identifier.
	ID string `json:"id"`

	StudentID string `json:"student_id"`

	// ConceptID is the gap concept this recommendation targets.
	ConceptID string `json:"concept_id"`

	// GapSeverity and GapConfidence snapshot the targeted gap at
	// generation time.
	GapSeverity   float64 `json:"gap_severity"`
	GapConfidence float64 `json:"gap_confidence"`

	// ResourceID and ResourceType identify the recommended resource.
	ResourceID   string       `json:"resource_id"`
	ResourceType ResourceType `json:"resource_type"`

	// Priority is the matcher's score for this item. Higher is stronger.
	Priority float64 `json:"priority"`

	// PrerequisiteSatisfied is true when no prerequisite of the item's
	// concept has an open gap ahead of it in the path.
	PrerequisiteSatisfied bool `json:"prerequisite_satisfied"`

	// EstimatedMinutes is the resource's expected completion time.
	EstimatedMinutes int `json:"estimated_minutes"`

	State ItemState `json:"state"`

	// EffectivenessRating is the student's feedback in [0, 1], nil until
	// feedback arrives.
	EffectivenessRating *float64 `json:"effectiveness_rating,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Path is an ordered, prerequisite-respecting sequence of recommendations
// for one student.
type Path struct {
	// ID is the unique path identifier.
	ID string `json:"id"`

	StudentID string `json:"student_id"`

	// GraphVersion is the concept graph snapshot the ordering used.
	GraphVersion string `json:"graph_version"`

	// Items is the ordered recommendation sequence. For any two items A
	// before B, A's concept is never a dependent of B's concept.
	Items []Item `json:"items"`

	// TotalMinutes sums the items' estimated times.
	TotalMinutes int `json:"total_minutes"`

	// Degraded is true when prerequisite ordering could not be applied
	// (invalid graph) and the path fell back to severity-only order.
	Degraded bool `json:"degraded"`

	GeneratedAt time.Time `json:"generated_at"`
}

// Feedback is one student report about a recommendation. Feedback is
// append-only; conflicting reports are resolved by latest-wins at read time.
type Feedback struct {
	RecommendationID string `json:"recommendation_id"`
	StudentID        string `json:"student_id"`

	// Completed reports whether the student finished the resource.
	Completed bool `json:"completed"`

	// Rating is the effectiveness rating in [0, 1], nil when the student
	// only reported completion.
	Rating *float64 `json:"rating,omitempty"`

	ReceivedAt time.Time `json:"received_at"`
}
