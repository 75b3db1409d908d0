// Package tool implements the Tool Caller (§4.3): guideline-tool association
// pre-filtering, per-tool LLM argument inference, the execution policy, and
// tool-insight precedence for missing/invalid parameters.
package tool

import (
	"github.com/parlant-engine/convengine/internal/model"
)

// Candidate is one tool a matched guideline may invoke, carrying the
// guideline's priority (its position among this turn's actionable matches)
// for tool-insight precedence.
type Candidate struct {
	ToolID            model.ToolID
	GuidelineID       string
	GuidelinePriority int
}

// inferenceDecision is the per-candidate-call LLM verdict shape, matching
// §4.3's "tool_calls_for_candidate_tool" entry: applicability, staging
// status, and a per-parameter argument evaluation list.
type inferenceDecision struct {
	ApplicabilityRationale  string    `json:"applicability_rationale"`
	Applicable              bool      `json:"is_applicable"`
	ArgumentEvaluations     []argEval `json:"argument_evaluations"`
	SameCallAlreadyStaged   bool      `json:"same_call_is_already_staged"`
}

// Outcome is the Tool Caller's decision for one candidate call.
type Outcome struct {
	Candidate  Candidate
	Call       *model.ToolCall
	Result     *model.ToolResult
	Skipped    bool
	SkipReason string
}

// CallResult bundles everything the engine needs from one Tool Caller pass.
type CallResult struct {
	Outcomes   []Outcome
	Insights   model.ToolInsights
	ToolEvents []model.Event
}
