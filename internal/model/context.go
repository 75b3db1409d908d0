package model

// IterationState snapshots one preparation iteration's results.
type IterationState struct {
	// MatchedGuidelines holds every guideline that matched this iteration,
	// in matcher-preserved order.
	MatchedGuidelines []GuidelineMatch
	// ToolEnabledMatches is the subset of MatchedGuidelines associated with
	// at least one enabled tool.
	ToolEnabledMatches []GuidelineMatch
	// OrdinaryMatches is the subset with no associated enabled tool.
	OrdinaryMatches []GuidelineMatch
	// ToolEvents holds the tool events emitted while running this iteration.
	ToolEvents []Event
	// ToolResults holds the same iteration's successful tool executions in
	// their native Go shape, for the composer's prompt (the wire-encoded
	// ToolEvents lose type fidelity once round-tripped through a store).
	ToolResults []ToolResult
	// ContextVariables observed while building prompts this iteration.
	ContextVariables []ContextVariable
	// GlossaryTerms loaded as relevant to the current context.
	GlossaryTerms []GlossaryTerm
	// JourneysConsidered lists journeys evaluated this iteration.
	JourneysConsidered []Journey
	// JourneyPaths maps journey id to the matched journey-node guideline id
	// appended this iteration, or "" if none matched for that journey.
	JourneyPaths map[string]string
	// ActiveCapabilities surfaced to the composer this iteration.
	ActiveCapabilities []Capability
	// ToolInsights accumulated while running the Tool Caller this iteration.
	ToolInsights ToolInsights
	// NewToolCallsIssued reports whether any tool was actually invoked this
	// iteration, used by the convergence check.
	NewToolCallsIssued bool
}

// NewIterationState returns a zero-value IterationState with initialized
// maps/slices so callers can append without nil checks.
func NewIterationState() IterationState {
	return IterationState{
		JourneyPaths: map[string]string{},
	}
}

// LoadedContext is the per-cycle mutable working set. It exists only for the
// duration of one processing cycle and is discarded afterward.
type LoadedContext struct {
	Session     Session
	Agent       Agent
	Customer    Customer
	// Interaction holds every event in the session log up to the moment the
	// cycle began loading context.
	Interaction []Event

	// Guidelines is every guideline the GuidelineStore lists (no tag filter,
	// enabled or not), loaded once at the start of the cycle (§2 step 3:
	// "Shared Context"); the matcher skips the disabled ones.
	Guidelines []Guideline
	// AvailableJourneys is every journey declared for this agent, the
	// "available" set FindRelevant narrows each iteration.
	AvailableJourneys []Journey
	// ContextVariables and Capabilities are loaded once per cycle as part of
	// the Shared Context (§2 step 3); unlike glossary terms they are not
	// re-queried per iteration.
	ContextVariables []ContextVariable
	Capabilities     []Capability
	// AppliedGuidelineIDs carries forward the prior cycle's applied set
	// (Session.LastAgentState().AppliedGuidelineIDs) for prev-applied
	// classification in the matcher.
	AppliedGuidelineIDs map[string]struct{}

	Iterations []IterationState
	// PreparedToRespond becomes true once the preparation loop converges.
	PreparedToRespond bool
}

// CurrentIteration returns a pointer to the in-progress iteration, or nil if
// none has been started yet.
func (c *LoadedContext) CurrentIteration() *IterationState {
	if len(c.Iterations) == 0 {
		return nil
	}
	return &c.Iterations[len(c.Iterations)-1]
}

// BeginIteration appends a new empty IterationState and returns it.
func (c *LoadedContext) BeginIteration() *IterationState {
	c.Iterations = append(c.Iterations, NewIterationState())
	return &c.Iterations[len(c.Iterations)-1]
}

// AllOrdinaryMatches flattens ordinary matches across every iteration run so
// far, preserving iteration then in-iteration order.
func (c *LoadedContext) AllOrdinaryMatches() []GuidelineMatch {
	var out []GuidelineMatch
	for _, it := range c.Iterations {
		out = append(out, it.OrdinaryMatches...)
	}
	return out
}

// AllToolEnabledMatches flattens tool-enabled matches across every iteration.
func (c *LoadedContext) AllToolEnabledMatches() []GuidelineMatch {
	var out []GuidelineMatch
	for _, it := range c.Iterations {
		out = append(out, it.ToolEnabledMatches...)
	}
	return out
}

// AllToolEvents flattens tool events emitted across every iteration.
func (c *LoadedContext) AllToolEvents() []Event {
	var out []Event
	for _, it := range c.Iterations {
		out = append(out, it.ToolEvents...)
	}
	return out
}
