// Package guideline implements the Guideline Matcher (§4.2): strategy
// resolution, the six generic batch types, parallel batched LLM evaluation,
// merge/transform, and post-response analysis of which guidelines were
// fulfilled.
package guideline

import (
	"time"

	"github.com/parlant-engine/convengine/internal/model"
)

// MatchingContext is the read-only snapshot the matcher evaluates against.
// It mirrors the relevant subset of model.LoadedContext without granting
// batches write access to engine state.
type MatchingContext struct {
	Session             model.Session
	Agent               model.Agent
	Customer            model.Customer
	Interaction         []model.Event
	ContextVariables    []model.ContextVariable
	GlossaryTerms       []model.GlossaryTerm
	Capabilities        []model.Capability
	AppliedGuidelineIDs map[string]struct{}
}

// BucketKind names one of the six generic strategy buckets (§4.2 table).
type BucketKind string

const (
	BucketJourneyStep                   BucketKind = "journey_step"
	BucketObservational                 BucketKind = "observational"
	BucketDisambiguation                BucketKind = "disambiguation"
	BucketPrevAppliedCustomerDependent  BucketKind = "prev_applied_customer_dependent"
	BucketPrevAppliedActionable         BucketKind = "prev_applied_actionable"
	BucketActionable                    BucketKind = "actionable"
)

// BatchGeneration records one LLM call made while matching, for
// observability/telemetry (MatchingResult.BatchGenerations).
type BatchGeneration struct {
	Bucket     BucketKind
	Strategy   string
	GuidelineIDs []string
	Duration   time.Duration
	Err        error
}

// MatchingResult is the Matcher.Match return value.
type MatchingResult struct {
	Matches          []model.GuidelineMatch
	BatchGenerations []BatchGeneration
	TotalDuration    time.Duration
}

// decision is the per-guideline LLM verdict shape every batch prompt parses.
type decision struct {
	GuidelineID string  `json:"guideline_id"`
	Applies     bool    `json:"applies"`
	Rationale   string  `json:"rationale"`
	Score       float64 `json:"score"`
}

type decisionSet struct {
	Decisions []decision `json:"decisions"`
}

func decisionSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"decisions": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"guideline_id": map[string]any{"type": "string"},
						"applies":      map[string]any{"type": "boolean"},
						"rationale":    map[string]any{"type": "string"},
						"score":        map[string]any{"type": "number"},
					},
					"required": []string{"guideline_id", "applies"},
				},
			},
		},
		"required": []string{"decisions"},
	}
}
