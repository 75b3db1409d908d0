package tool

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/parlant-engine/convengine/internal/correlation"
	"github.com/parlant-engine/convengine/internal/event"
	"github.com/parlant-engine/convengine/internal/llm"
	"github.com/parlant-engine/convengine/internal/model"
	"github.com/parlant-engine/convengine/internal/ratelimit"
	"github.com/parlant-engine/convengine/internal/retry"
	"github.com/parlant-engine/convengine/internal/store"
	"github.com/parlant-engine/convengine/internal/telemetry"
)

// Caller implements the Tool Caller (§4.3): it pre-filters candidate tools
// from matched guidelines, runs one LLM inference per candidate tool,
// applies the execution policy, and merges the resulting insights.
type Caller struct {
	Tools        store.ToolExecutor
	Associations store.GuidelineToolAssociations
	JourneyTools store.JourneyNodeToolAssociations
	Gen          llm.Generator
	Emitter      event.Emitter
	Limiter      *ratelimit.Limiter
	Logger       telemetry.Logger
	Tracer       telemetry.Tracer
}

// New constructs a Caller. Limiter/Logger/Tracer default to unbounded/noop
// when nil.
func New(tools store.ToolExecutor, assoc store.GuidelineToolAssociations, journeyTools store.JourneyNodeToolAssociations, gen llm.Generator, emitter event.Emitter, limiter *ratelimit.Limiter, logger telemetry.Logger, tracer telemetry.Tracer) *Caller {
	if limiter == nil {
		limiter = ratelimit.Unlimited()
	}
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	if tracer == nil {
		tracer = telemetry.NewNoopTracer()
	}
	return &Caller{
		Tools: tools, Associations: assoc, JourneyTools: journeyTools,
		Gen: gen, Emitter: emitter, Limiter: limiter, Logger: logger, Tracer: tracer,
	}
}

// PreExecState snapshots the staged tool calls before a preparation
// iteration runs, so the "same_call_is_already_staged" inference can
// dedupe against calls staged earlier in the cycle.
type PreExecState struct {
	Staged []model.ToolCall
}

// candidates collects (guideline, tool-id) pairs via the exact-id
// association registry (§4.3 pre-filter step 1) plus journey-node tool
// associations (step 2).
func (c *Caller) candidates(ctx context.Context, matches []model.GuidelineMatch) ([]Candidate, error) {
	assoc, err := c.Associations.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("tool: load associations: %w", err)
	}

	var out []Candidate
	for priority, m := range matches {
		g := m.Guideline
		for _, tid := range assoc[g.ID] {
			out = append(out, Candidate{ToolID: tid, GuidelineID: g.ID, GuidelinePriority: priority})
		}
		if g.IsJourneyNode() && c.JourneyTools != nil {
			tids, err := c.JourneyTools.Find(ctx, g.Metadata.JourneyNodeID)
			if err != nil {
				return nil, fmt.Errorf("tool: journey node associations: %w", err)
			}
			for _, tid := range tids {
				out = append(out, Candidate{ToolID: tid, GuidelineID: g.ID, GuidelinePriority: priority})
			}
		}
	}
	return out, nil
}

type inference struct {
	cand      Candidate
	tool      model.Tool
	decisions []inferenceDecision
	skip      bool
	skipWhy   string
	err       error
}

// CallTools implements the Tool Caller contract (§4.3): fan out one
// inference call per candidate tool in parallel, then execute the tools
// whose inference approved a call, independent executions running in
// parallel too.
func (c *Caller) CallTools(ctx context.Context, matches []model.GuidelineMatch, pre PreExecState, interaction []model.Event, agent model.Agent) (CallResult, error) {
	ctx, span := c.Tracer.Start(ctx, "tool.call")
	defer span.End()

	cands, err := c.candidates(ctx, matches)
	if err != nil {
		return CallResult{}, err
	}
	if len(cands) == 0 {
		return CallResult{}, nil
	}

	inferences := make([]inference, len(cands))
	var wg sync.WaitGroup
	for i, cand := range cands {
		wg.Add(1)
		go func(i int, cand Candidate) {
			defer wg.Done()
			inferences[i] = c.runInference(ctx, cand, matches, pre, interaction, agent)
		}(i, cand)
	}
	wg.Wait()

	var (
		mu       sync.Mutex
		execWG   sync.WaitGroup
		outcomes []Outcome
		insights model.ToolInsights
	)

	for _, inf := range inferences {
		switch {
		case inf.skip:
			outcomes = append(outcomes, Outcome{Candidate: inf.cand, Skipped: true, SkipReason: inf.skipWhy})
		case inf.err != nil:
			outcomes = append(outcomes, Outcome{Candidate: inf.cand, Skipped: true, SkipReason: inf.err.Error()})
		case len(inf.decisions) == 0:
			outcomes = append(outcomes, Outcome{Candidate: inf.cand, Skipped: true, SkipReason: "no candidate calls returned"})
		default:
			for _, d := range inf.decisions {
				c.applyPolicy(ctx, inf.cand, inf.tool, d, &mu, &execWG, &outcomes, &insights)
			}
		}
	}
	execWG.Wait()

	insights = dedupeInsights(insights)

	toolEvents, err := c.emitToolEvent(ctx, outcomes)
	if err != nil {
		return CallResult{}, err
	}

	return CallResult{Outcomes: outcomes, Insights: insights, ToolEvents: toolEvents}, nil
}

// runInference issues the per-candidate-tool LLM inference call (§4.3).
func (c *Caller) runInference(ctx context.Context, cand Candidate, matches []model.GuidelineMatch, pre PreExecState, interaction []model.Event, agent model.Agent) inference {
	ictx := correlation.Push(ctx, "tool-infer:"+cand.ToolID.String())
	if err := c.Limiter.Wait(ictx); err != nil {
		return inference{cand: cand, err: err}
	}
	t, ok := c.Tools.Lookup(ictx, cand.ToolID)
	if !ok {
		return inference{cand: cand, skip: true, skipWhy: "tool not found"}
	}
	ds, err := c.inferOne(ictx, cand, t, matches, pre, interaction, agent)
	if err != nil {
		c.Logger.Error(ictx, "tool inference failed", "tool_id", cand.ToolID.String(), "error", err.Error())
		return inference{cand: cand, tool: t, err: err}
	}
	return inference{cand: cand, tool: t, decisions: ds}
}

// applyPolicy implements the §4.3 execution policy for one candidate-call
// decision: skip if not applicable or already staged, record insights and
// skip if any argument is missing/invalid, otherwise dispatch execution in
// the background.
func (c *Caller) applyPolicy(ctx context.Context, cand Candidate, t model.Tool, d inferenceDecision, mu *sync.Mutex, execWG *sync.WaitGroup, outcomes *[]Outcome, insights *model.ToolInsights) {
	mu.Lock()
	defer mu.Unlock()

	if !d.Applicable {
		*outcomes = append(*outcomes, Outcome{Candidate: cand, Skipped: true, SkipReason: "not applicable"})
		return
	}
	if d.SameCallAlreadyStaged {
		*outcomes = append(*outcomes, Outcome{Candidate: cand, Skipped: true, SkipReason: "already staged"})
		return
	}

	args, blocked, paramInsights := evaluateArguments(t, d)
	for _, p := range paramInsights.MissingData {
		p.Precedence = cand.GuidelinePriority
		insights.MissingData = append(insights.MissingData, p)
	}
	for _, p := range paramInsights.InvalidData {
		p.Precedence = cand.GuidelinePriority
		insights.InvalidData = append(insights.InvalidData, p)
	}
	if blocked {
		*outcomes = append(*outcomes, Outcome{Candidate: cand, Skipped: true, SkipReason: "blocked on parameters"})
		return
	}

	call := model.ToolCall{ToolID: cand.ToolID, Arguments: args, GuidelinePriority: cand.GuidelinePriority}
	execWG.Add(1)
	go func() {
		defer execWG.Done()
		ectx := correlation.Push(ctx, "tool-exec:"+cand.ToolID.String())
		if c.Emitter != nil {
			_, _ = c.Emitter.EmitStatus(ectx, event.StatusProcessing, map[string]any{"stage": "Fetching data"})
		}
		result := c.execute(ectx, call)
		mu.Lock()
		*outcomes = append(*outcomes, Outcome{Candidate: cand, Call: &call, Result: &result})
		mu.Unlock()
	}()
}

// emitToolEvent publishes a single Tool event bundling every actually
// invoked call this pass (§4.3 "Outputs").
func (c *Caller) emitToolEvent(ctx context.Context, outcomes []Outcome) ([]model.Event, error) {
	var calls []event.ToolCallPayload
	for _, o := range outcomes {
		if o.Result == nil {
			continue
		}
		calls = append(calls, event.ToolCallPayload{
			ToolID:    o.Candidate.ToolID.String(),
			Arguments: o.Call.Arguments,
			Result: event.ToolResultWire{
				Data:                 o.Result.Data,
				CannedResponseFields: o.Result.CannedResponseFields,
				CannedResponses:      o.Result.CannedResponses,
			},
		})
	}
	if len(calls) == 0 || c.Emitter == nil {
		return nil, nil
	}
	ev, err := c.Emitter.EmitTool(ctx, event.ToolPayload{ToolCalls: calls})
	if err != nil {
		return nil, fmt.Errorf("tool: emit tool event: %w", err)
	}
	return []model.Event{ev}, nil
}

func (c *Caller) inferOne(ctx context.Context, cand Candidate, t model.Tool, matches []model.GuidelineMatch, pre PreExecState, interaction []model.Event, agent model.Agent) ([]inferenceDecision, error) {
	prompt := inferencePrompt(cand, t, matches, pre, interaction, agent)
	var result struct {
		ToolCallsForCandidateTool []inferenceDecision `json:"tool_calls_for_candidate_tool"`
	}
	err := retry.Do(ctx, func(int) error {
		result.ToolCallsForCandidateTool = nil
		_, genErr := c.Gen.Generate(ctx, prompt, candidateToolSchema(t), &result, llm.Hints{Temperature: 0.1})
		return genErr
	})
	if err != nil {
		return nil, err
	}
	return result.ToolCallsForCandidateTool, nil
}

func inferencePrompt(cand Candidate, t model.Tool, matches []model.GuidelineMatch, pre PreExecState, interaction []model.Event, agent model.Agent) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Agent %q is deciding whether to invoke tool %q.\n", agent.Name, t.ID.String())
	sb.WriteString("\nMatched guidelines:\n")
	for _, m := range matches {
		if m.Guideline.ID == cand.GuidelineID {
			fmt.Fprintf(&sb, "- condition=%q action=%q\n", m.Guideline.Condition, m.Guideline.Action)
		}
	}
	sb.WriteString("\nTool definition:\n")
	fmt.Fprintf(&sb, "- description: %s\n", t.Description)
	for _, p := range t.Params {
		fmt.Fprintf(&sb, "  - %s (required=%v): %s\n", p.Name, p.Required, p.Description)
	}
	sb.WriteString("\nAlready staged calls this cycle:\n")
	for _, s := range pre.Staged {
		fmt.Fprintf(&sb, "- %s %v\n", s.ToolID.String(), s.Arguments)
	}
	sb.WriteString("\nInteraction history:\n")
	for _, ev := range interaction {
		if ev.Kind != model.EventKindMessage {
			continue
		}
		fmt.Fprintf(&sb, "- [%s] %v\n", ev.Source, ev.Data["message"])
	}
	sb.WriteString("\nDecide whether to invoke this tool and with what arguments, returning one entry per distinct intended invocation.\n")
	return sb.String()
}

func candidateToolSchema(t model.Tool) map[string]any {
	entry := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"applicability_rationale":     map[string]any{"type": "string"},
			"is_applicable":               map[string]any{"type": "boolean"},
			"same_call_is_already_staged": map[string]any{"type": "boolean"},
			"argument_evaluations": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"param_name": map[string]any{"type": "string"},
						"validity":   map[string]any{"type": "string", "enum": []string{"valid", "invalid", "missing"}},
						"value":      map[string]any{"type": "string"},
						"optional":   map[string]any{"type": "boolean"},
					},
					"required": []string{"param_name", "validity"},
				},
			},
		},
		"required": []string{"is_applicable"},
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"tool_calls_for_candidate_tool": map[string]any{
				"type":  "array",
				"items": entry,
			},
		},
		"required": []string{"tool_calls_for_candidate_tool"},
	}
}

// argEval is the per-parameter verdict inside one inferenceDecision's
// argument_evaluations list.
type argEval struct {
	ParamName string `json:"param_name"`
	Validity  string `json:"validity"`
	Value     string `json:"value"`
	Optional  bool   `json:"optional"`
}

// evaluateArguments checks every declared parameter of t against the
// model's per-parameter verdicts, re-validates anything the model marked
// "valid" against the tool's own JSON Schema for that parameter, and
// classifies missing/invalid insights, reporting whether execution should
// be blocked.
func evaluateArguments(t model.Tool, d inferenceDecision) (args map[string]any, blocked bool, insights model.ToolInsights) {
	args = map[string]any{}
	byName := map[string]argEval{}
	for _, e := range d.ArgumentEvaluations {
		byName[e.ParamName] = e
	}

	for _, p := range t.Params {
		e, ok := byName[p.Name]
		if !ok {
			if p.Required {
				insights.MissingData = append(insights.MissingData, model.ToolParamInsight{ToolID: t.ID, ParamName: p.Name})
				blocked = true
			}
			continue
		}
		switch model.ArgumentValidity(e.Validity) {
		case model.ArgValid:
			val, err := validateArgument(p, e.Value)
			if err != nil {
				insights.InvalidData = append(insights.InvalidData, model.ToolParamInsight{ToolID: t.ID, ParamName: p.Name})
				blocked = true
				continue
			}
			args[p.Name] = val
		case model.ArgInvalid:
			insights.InvalidData = append(insights.InvalidData, model.ToolParamInsight{ToolID: t.ID, ParamName: p.Name})
			blocked = true
		case model.ArgMissing:
			if p.Required {
				insights.MissingData = append(insights.MissingData, model.ToolParamInsight{ToolID: t.ID, ParamName: p.Name})
				blocked = true
			}
		}
	}
	return args, blocked, insights
}

// execute invokes the tool, retrying on exception up to 3 times before
// recording a failed ToolResult (§4.3 execution policy).
func (c *Caller) execute(ctx context.Context, call model.ToolCall) model.ToolResult {
	var result model.ToolResult
	err := retry.Do(ctx, func(int) error {
		r, execErr := c.Tools.Execute(ctx, call)
		result = r
		return execErr
	})
	if err != nil {
		c.Logger.Error(ctx, "tool execution failed", "tool_id", call.ToolID.String(), "error", err.Error())
		result = model.ToolResult{Call: call, Error: err.Error()}
	}
	return result
}

// FilterInsights applies the §4.3 precedence rule used by §4.1 step 9:
// for a parameter name appearing as both missing and invalid, keep missing;
// dedupe by (tool_id, parameter_name).
func FilterInsights(insights model.ToolInsights) model.ToolInsights {
	return dedupeInsights(insights)
}

func dedupeInsights(in model.ToolInsights) model.ToolInsights {
	missingKeys := map[string]model.ToolParamInsight{}
	for _, m := range in.MissingData {
		key := m.ToolID.String() + "/" + m.ParamName
		if existing, ok := missingKeys[key]; !ok || m.Precedence < existing.Precedence {
			missingKeys[key] = m
		}
	}
	invalidKeys := map[string]model.ToolParamInsight{}
	for _, m := range in.InvalidData {
		key := m.ToolID.String() + "/" + m.ParamName
		if _, isMissing := missingKeys[key]; isMissing {
			continue
		}
		if existing, ok := invalidKeys[key]; !ok || m.Precedence < existing.Precedence {
			invalidKeys[key] = m
		}
	}

	out := model.ToolInsights{}
	for _, v := range missingKeys {
		out.MissingData = append(out.MissingData, v)
	}
	for _, v := range invalidKeys {
		out.InvalidData = append(out.InvalidData, v)
	}
	return out
}
