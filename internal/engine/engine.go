// Package engine implements the Processing Engine (§4.1): the per-cycle
// orchestrator tying the Guideline Matcher, Tool Caller, Message Composer,
// and Event/Status Emitter together, with the hook checkpoints and
// cancellation-suppression latch spec.md §5/§9 require.
package engine

import (
	"context"
	"math/rand"
	"time"

	"github.com/parlant-engine/convengine/internal/compose"
	"github.com/parlant-engine/convengine/internal/correlation"
	"github.com/parlant-engine/convengine/internal/event"
	"github.com/parlant-engine/convengine/internal/guideline"
	"github.com/parlant-engine/convengine/internal/llm"
	"github.com/parlant-engine/convengine/internal/model"
	"github.com/parlant-engine/convengine/internal/ratelimit"
	"github.com/parlant-engine/convengine/internal/store"
	"github.com/parlant-engine/convengine/internal/telemetry"
	"github.com/parlant-engine/convengine/internal/tool"
)

// defaultCycleTimeout bounds one processing cycle per §5.
const defaultCycleTimeout = 57 * time.Second

// Dependencies bundles every collaborator the engine needs, following
// spec.md §9's explicit-constructor-parameter-object convention in place of
// a DI container.
type Dependencies struct {
	Sessions                    store.SessionStore
	Agents                      store.AgentStore
	Customers                   store.CustomerStore
	Guidelines                  store.GuidelineStore
	Journeys                    store.JourneyStore
	GuidelineToolAssociations   store.GuidelineToolAssociations
	JourneyNodeToolAssociations store.JourneyNodeToolAssociations
	CannedResponses             store.CannedResponseStore
	ContextVariables            store.ContextVariableStore
	Glossary                    store.GlossaryStore
	Capabilities                store.CapabilityStore
	Tools                       store.ToolExecutor

	Gen     llm.Generator
	Limiter *ratelimit.Limiter
	Logger  telemetry.Logger
	Tracer  telemetry.Tracer

	Hooks Hooks

	// Timeout bounds one cycle; defaults to 57s (§5).
	Timeout time.Duration
	// Sleep abstracts real time for preamble/pacing delays so tests can
	// run deterministically and fast.
	Sleep compose.Sleeper
	Rand  *rand.Rand

	MaxGlossaryTerms  int
	MaxActiveJourneys int
}

func (d Dependencies) withDefaults() Dependencies {
	if d.Logger == nil {
		d.Logger = telemetry.NewNoopLogger()
	}
	if d.Tracer == nil {
		d.Tracer = telemetry.NewNoopTracer()
	}
	if d.Limiter == nil {
		d.Limiter = ratelimit.Unlimited()
	}
	if d.Timeout <= 0 {
		d.Timeout = defaultCycleTimeout
	}
	return d
}

// Engine runs one processing cycle at a time per session (concurrency
// across sessions is the caller's responsibility, typically via
// internal/task.Service).
type Engine struct {
	deps Dependencies
}

// New constructs an Engine.
func New(deps Dependencies) *Engine {
	return &Engine{deps: deps.withDefaults()}
}

func (e *Engine) rng() *rand.Rand {
	if e.deps.Rand != nil {
		return e.deps.Rand
	}
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// Process runs one complete processing cycle for sessionID per §4.1's
// twelve stages, publishing every event through emitter. It returns true if
// the cycle emitted its reply, or if the session is in Manual mode (which
// ends the cycle without any work). It returns false when a hook bails, when
// the cycle is cancelled during preparation, or when an error prevents
// progress.
func (e *Engine) Process(ctx context.Context, sessionID, agentID string, emitter event.Emitter) bool {
	ctx, cancel := context.WithTimeout(ctx, e.deps.Timeout)
	defer cancel()

	scope := correlation.From(ctx)
	if scope.IsZero() {
		scope = correlation.NewRoot()
	}
	ctx = correlation.With(ctx, scope)

	lctx, err := e.loadContext(ctx, sessionID, agentID)
	if err != nil {
		e.deps.Logger.Error(ctx, "engine: load context failed", "session_id", sessionID, "error", err.Error())
		return false
	}

	// §4.1 step 1: Manual mode hands the conversation to a human agent;
	// the engine does nothing further this cycle.
	if lctx.Session.Mode == model.SessionModeManual {
		return true
	}

	if call(e.deps.Hooks.OnAcknowledging, ctx, lctx) == HookBail {
		return false
	}

	if _, err := emitter.EmitStatus(ctx, event.StatusAcknowledged, nil); err != nil {
		e.deps.Logger.Error(ctx, "engine: emit acknowledged failed", "error", err.Error())
		return false
	}

	if call(e.deps.Hooks.OnAcknowledged, ctx, lctx) == HookBail {
		return false
	}
	if call(e.deps.Hooks.OnPreparing, ctx, lctx) == HookBail {
		return false
	}

	participant := model.Participant{ID: lctx.Agent.ID, DisplayName: lctx.Agent.Name}
	matcher := guideline.NewMatcher(e.deps.Gen, e.deps.Limiter, e.deps.Logger, e.deps.Tracer)
	caller := tool.New(e.deps.Tools, e.deps.GuidelineToolAssociations, e.deps.JourneyNodeToolAssociations, e.deps.Gen, emitter, e.deps.Limiter, e.deps.Logger, e.deps.Tracer)

	e.runPreparationLoop(ctx, lctx, matcher, caller, emitter, participant)

	if ctx.Err() != nil {
		e.deps.Logger.Warn(ctx, "engine: cycle cancelled during preparation", "session_id", sessionID)
		return false
	}

	if call(e.deps.Hooks.OnGeneratingMessages, ctx, lctx) == HookBail {
		return false
	}

	insights := tool.FilterInsights(mergeInsights(lctx))

	gctx := e.generationContext(lctx)
	gctx.ToolInsights = insights

	var result compose.Result
	latch := Latch{}
	genErr := latch.Guard(ctx, func(gctx2 context.Context) error {
		composer := compose.New(lctx.Agent, compose.Dependencies{
			Gen:             e.deps.Gen,
			CannedResponses: e.deps.CannedResponses,
			Emitter:         emitter,
			Logger:          e.deps.Logger,
			Tracer:          e.deps.Tracer,
		})
		r, err := composer.Compose(gctx2, gctx)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if genErr != nil {
		e.deps.Logger.Error(ctx, "engine: message generation failed", "error", genErr.Error())
		_, _ = emitter.EmitStatus(context.WithoutCancel(ctx), event.StatusError, map[string]any{"exception": genErr.Error()})
		return false
	}

	hook := func(hctx context.Context, chunk string) compose.HookOutcome {
		if e.deps.Hooks.OnMessageGenerated == nil {
			return compose.Continue
		}
		if e.deps.Hooks.OnMessageGenerated(hctx, chunk) == HookBail {
			return compose.Bail
		}
		return compose.Continue
	}

	emitErr := latch.Guard(ctx, func(gctx2 context.Context) error {
		return compose.Emit(gctx2, emitter, e.deps.Sleep, participant, result, hook)
	})
	if emitErr != nil {
		e.deps.Logger.Error(ctx, "engine: message emission failed", "error", emitErr.Error())
		return false
	}

	// §4.1 step 12: post-processing runs detached from the cycle's own
	// context, per DESIGN.md's decision that a superseding cycle must not
	// cancel it (Open Question 3).
	go e.postProcess(context.WithoutCancel(ctx), sessionID, lctx, matcher, result)

	return true
}

// runPreparationLoop drives §4.1.a iterations until convergence, launching
// the optional preamble task concurrently with the first iteration.
func (e *Engine) runPreparationLoop(ctx context.Context, lctx *model.LoadedContext, matcher *guideline.Matcher, caller *tool.Caller, emitter event.Emitter, participant model.Participant) {
	for !lctx.PreparedToRespond {
		if ctx.Err() != nil {
			return
		}

		iteration := len(lctx.Iterations)
		var preambleDone chan struct{}

		if iteration == 0 && compose.PreambleRequired(iteration, lastAgentMessageWasPreamble(lctx.Interaction), nil) {
			preambleDone = make(chan struct{})
			go func() {
				defer close(preambleDone)
				pg := &compose.PreambleGenerator{
					Deps: compose.Dependencies{
						Gen:             e.deps.Gen,
						CannedResponses: e.deps.CannedResponses,
						Emitter:         emitter,
						Logger:          e.deps.Logger,
						Tracer:          e.deps.Tracer,
					},
					Mode:        lctx.Agent.Composition,
					Sleep:       e.deps.Sleep,
					Rand:        e.rng(),
					Participant: participant,
				}
				pg.Run(ctx, e.generationContext(lctx))
			}()
		}

		if call(e.deps.Hooks.OnPreparationIterationStart, ctx, lctx, iteration) == HookBail {
			return
		}

		if err := e.runIteration(ctx, lctx, matcher, caller); err != nil {
			e.deps.Logger.Error(ctx, "engine: preparation iteration failed", "iteration", iteration, "error", err.Error())
			lctx.PreparedToRespond = true
		}

		if preambleDone != nil {
			select {
			case <-preambleDone:
			case <-ctx.Done():
			}
		}

		if call(e.deps.Hooks.OnPreparationIterationEnd, ctx, lctx, iteration) == HookBail {
			return
		}

		if !lctx.PreparedToRespond {
			lctx.PreparedToRespond = checkConvergence(lctx)
		}
	}
}

// generationContext projects a LoadedContext into the narrower snapshot the
// composer renders from.
func (e *Engine) generationContext(lctx *model.LoadedContext) compose.GenerationContext {
	var glossary []model.GlossaryTerm
	if cur := lctx.CurrentIteration(); cur != nil {
		glossary = cur.GlossaryTerms
	}

	var toolResults []model.ToolResult
	for _, it := range lctx.Iterations {
		toolResults = append(toolResults, it.ToolResults...)
	}

	var journeys []model.Journey
	if cur := lctx.CurrentIteration(); cur != nil {
		journeys = cur.JourneysConsidered
	}

	return compose.GenerationContext{
		Session:            lctx.Session,
		Agent:              lctx.Agent,
		Customer:           lctx.Customer,
		Interaction:        lctx.Interaction,
		OrdinaryMatches:    lctx.AllOrdinaryMatches(),
		ToolEnabledMatches: lctx.AllToolEnabledMatches(),
		ToolResults:        toolResults,
		GlossaryTerms:      glossary,
		Capabilities:       lctx.Capabilities,
		ContextVariables:   lctx.ContextVariables,
		ActiveJourneys:     journeys,
	}
}

// mergeInsights flattens tool insights accumulated across every iteration
// this cycle prior to final deduplication/filtering.
func mergeInsights(lctx *model.LoadedContext) model.ToolInsights {
	var merged model.ToolInsights
	for _, it := range lctx.Iterations {
		merged.MissingData = append(merged.MissingData, it.ToolInsights.MissingData...)
		merged.InvalidData = append(merged.InvalidData, it.ToolInsights.InvalidData...)
	}
	return merged
}

// postProcess implements §4.1 step 12: classify guideline fulfillment
// against the composed message, append the cycle's AgentState snapshot, and
// fire the final hook. It deliberately runs on a context that no longer
// observes the originating cycle's cancellation.
func (e *Engine) postProcess(ctx context.Context, sessionID string, lctx *model.LoadedContext, matcher *guideline.Matcher, result compose.Result) {
	allMatches := make([]model.GuidelineMatch, 0)
	for _, it := range lctx.Iterations {
		allMatches = append(allMatches, it.MatchedGuidelines...)
	}
	toolEventsOccurred := len(lctx.AllToolEvents()) > 0

	analyses, err := matcher.AnalyzeResponse(ctx, result.Text, allMatches, toolEventsOccurred)
	if err != nil {
		e.deps.Logger.Warn(ctx, "engine: response analysis failed", "error", err.Error())
	}

	state := lctx.Session.LastAgentState().Clone()
	for _, a := range analyses {
		if a.Fulfilled {
			state.AppliedGuidelineIDs[a.GuidelineID] = struct{}{}
		}
	}
	for _, it := range lctx.Iterations {
		for jid, gid := range it.JourneyPaths {
			if gid == "" {
				continue
			}
			state.JourneyPathIndexes[jid]++
		}
	}
	state.CreatedAt = time.Now()

	if err := e.deps.Sessions.AppendAgentState(ctx, sessionID, state); err != nil {
		e.deps.Logger.Error(ctx, "engine: append agent state failed", "error", err.Error())
	}

	e.maybeGenerateTitle(ctx, sessionID, lctx)

	if e.deps.Hooks.OnMessagesEmitted != nil {
		e.deps.Hooks.OnMessagesEmitted(ctx, lctx)
	}
}
