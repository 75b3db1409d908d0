package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/parlant-engine/convengine/internal/event"
	"github.com/parlant-engine/convengine/internal/guideline"
	"github.com/parlant-engine/convengine/internal/model"
	"github.com/parlant-engine/convengine/internal/tool"
)

// parseToolID parses the wire "service:name" form back into a model.ToolID.
func parseToolID(s string) model.ToolID {
	service, name, _ := strings.Cut(s, ":")
	return model.ToolID{Service: service, Name: name}
}

const maxGlossaryTermsDefault = 10
const maxActiveJourneysDefault = 3

// runIteration implements §4.1.a: one pass of guideline matching and tool
// calling. The first iteration considers every enabled guideline; later
// iterations narrow to guidelines newly activated by the previous
// iteration's tool events.
func (e *Engine) runIteration(ctx context.Context, lctx *model.LoadedContext, matcher *guideline.Matcher, caller *tool.Caller) error {
	iter := lctx.BeginIteration()
	idx := len(lctx.Iterations) - 1
	initial := idx == 0

	query := lastCustomerMessage(lctx.Interaction)

	activeJourneys, err := e.deps.Journeys.FindRelevant(ctx, query, lctx.AvailableJourneys, e.maxActiveJourneys())
	if err != nil {
		return fmt.Errorf("engine: find relevant journeys: %w", err)
	}
	iter.JourneysConsidered = activeJourneys
	journeyMap := make(map[string]model.Journey, len(activeJourneys))
	for _, j := range activeJourneys {
		journeyMap[j.ID] = j
	}

	glossary, err := e.deps.Glossary.FindRelevant(ctx, query, e.maxGlossaryTerms())
	if err != nil {
		return fmt.Errorf("engine: find relevant glossary terms: %w", err)
	}
	iter.GlossaryTerms = glossary
	iter.ContextVariables = lctx.ContextVariables
	iter.ActiveCapabilities = lctx.Capabilities

	candidates, err := e.candidateGuidelines(ctx, lctx, initial)
	if err != nil {
		return err
	}

	mctx := guideline.MatchingContext{
		Session:             lctx.Session,
		Agent:               lctx.Agent,
		Customer:            lctx.Customer,
		Interaction:         lctx.Interaction,
		ContextVariables:    lctx.ContextVariables,
		GlossaryTerms:       glossary,
		Capabilities:        lctx.Capabilities,
		AppliedGuidelineIDs: lctx.AppliedGuidelineIDs,
	}

	result, err := matcher.Match(ctx, mctx, journeyMap, candidates)
	if err != nil {
		return fmt.Errorf("engine: match guidelines: %w", err)
	}
	iter.MatchedGuidelines = result.Matches

	ordinary, toolEnabled, err := e.splitMatches(ctx, result.Matches)
	if err != nil {
		return err
	}
	iter.OrdinaryMatches = ordinary
	iter.ToolEnabledMatches = toolEnabled

	if len(toolEnabled) > 0 {
		pre := tool.PreExecState{Staged: e.stagedCalls(lctx)}
		callResult, err := caller.CallTools(ctx, toolEnabled, pre, lctx.Interaction, lctx.Agent)
		if err != nil {
			return fmt.Errorf("engine: call tools: %w", err)
		}
		iter.ToolEvents = callResult.ToolEvents
		iter.ToolInsights = callResult.ToolInsights
		for _, o := range callResult.Outcomes {
			if o.Call != nil {
				iter.NewToolCallsIssued = true
			}
			if o.Result != nil {
				iter.ToolResults = append(iter.ToolResults, *o.Result)
			}
		}
		lctx.Interaction = append(lctx.Interaction, callResult.ToolEvents...)

		// Refresh glossary again now that tool results may have introduced
		// new terms (§4.1.a: "glossary is refreshed a second time after
		// tool calling").
		refreshed, err := e.deps.Glossary.FindRelevant(ctx, query, e.maxGlossaryTerms())
		if err != nil {
			return fmt.Errorf("engine: refresh glossary after tools: %w", err)
		}
		iter.GlossaryTerms = refreshed
	}

	for _, m := range result.Matches {
		if !m.Guideline.IsJourneyNode() {
			continue
		}
		jid := m.Guideline.Metadata.JourneyNodeJourneyID
		iter.JourneyPaths[jid] = m.Guideline.ID
	}

	return nil
}

func (e *Engine) maxGlossaryTerms() int {
	if e.deps.MaxGlossaryTerms > 0 {
		return e.deps.MaxGlossaryTerms
	}
	return maxGlossaryTermsDefault
}

func (e *Engine) maxActiveJourneys() int {
	if e.deps.MaxActiveJourneys > 0 {
		return e.deps.MaxActiveJourneys
	}
	return maxActiveJourneysDefault
}

// candidateGuidelines returns the guidelines eligible for matching this
// iteration. The initial iteration considers every enabled guideline;
// additional iterations consider only guidelines newly activated by tool
// events emitted in the previous iteration (§4.1.a).
func (e *Engine) candidateGuidelines(ctx context.Context, lctx *model.LoadedContext, initial bool) ([]model.Guideline, error) {
	if initial {
		return lctx.Guidelines, nil
	}

	prev := lctx.Iterations[len(lctx.Iterations)-2]
	if len(prev.ToolEvents) == 0 {
		return nil, nil
	}

	executedTools := make(map[model.ToolID]struct{})
	for _, ev := range prev.ToolEvents {
		if ev.Kind != model.EventKindTool {
			continue
		}
		calls, _ := ev.Data["tool_calls"].([]event.ToolCallPayload)
		for _, c := range calls {
			executedTools[parseToolID(c.ToolID)] = struct{}{}
		}
	}
	if len(executedTools) == 0 {
		return nil, nil
	}

	assoc, err := e.deps.GuidelineToolAssociations.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("engine: load associations for candidate narrowing: %w", err)
	}

	byID := make(map[string]model.Guideline, len(lctx.Guidelines))
	for _, g := range lctx.Guidelines {
		byID[g.ID] = g
	}

	var out []model.Guideline
	for gid, tids := range assoc {
		g, ok := byID[gid]
		if !ok {
			continue
		}
		for _, tid := range tids {
			if _, executed := executedTools[tid]; executed {
				out = append(out, g)
				break
			}
		}
	}
	return out, nil
}

// splitMatches separates matched guidelines into ordinary and tool-enabled
// buckets per §4.3's pre-filter: a guideline is tool-enabled iff it has an
// exact-id association to a tool, or (for journey-node guidelines) its node
// has an associated tool.
func (e *Engine) splitMatches(ctx context.Context, matches []model.GuidelineMatch) (ordinary, toolEnabled []model.GuidelineMatch, err error) {
	assoc, err := e.deps.GuidelineToolAssociations.FindAll(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("engine: load associations: %w", err)
	}

	for _, m := range matches {
		if len(assoc[m.Guideline.ID]) > 0 {
			toolEnabled = append(toolEnabled, m)
			continue
		}
		if m.Guideline.IsJourneyNode() && e.deps.JourneyNodeToolAssociations != nil {
			tids, err := e.deps.JourneyNodeToolAssociations.Find(ctx, m.Guideline.Metadata.JourneyNodeID)
			if err != nil {
				return nil, nil, fmt.Errorf("engine: journey node associations: %w", err)
			}
			if len(tids) > 0 {
				toolEnabled = append(toolEnabled, m)
				continue
			}
		}
		ordinary = append(ordinary, m)
	}
	return ordinary, toolEnabled, nil
}

// stagedCalls flattens every tool call issued so far this cycle, used so
// the Tool Caller's "already staged" inference can dedupe against them.
func (e *Engine) stagedCalls(lctx *model.LoadedContext) []model.ToolCall {
	var out []model.ToolCall
	for _, it := range lctx.Iterations {
		for _, ev := range it.ToolEvents {
			if ev.Kind != model.EventKindTool {
				continue
			}
			calls, _ := ev.Data["tool_calls"].([]event.ToolCallPayload)
			for _, c := range calls {
				out = append(out, model.ToolCall{ToolID: parseToolID(c.ToolID), Arguments: c.Arguments})
			}
		}
	}
	return out
}

// checkConvergence implements §4.1.a's convergence rule: prepared_to_respond
// becomes true once an iteration issues no new tool calls and surfaces no
// new guideline matches, or once the agent's iteration budget is spent.
func checkConvergence(lctx *model.LoadedContext) bool {
	n := len(lctx.Iterations)
	if n == 0 {
		return false
	}
	if lctx.Agent.MaxEngineIterations > 0 && n >= lctx.Agent.MaxEngineIterations {
		return true
	}
	cur := lctx.Iterations[n-1]
	return !cur.NewToolCallsIssued && len(cur.MatchedGuidelines) == 0
}
