// Package compose implements the Message Composer (§4.4): the Fluid
// generator, the canned-response 4+1 pipeline, preamble generation, and
// final message splitting/pacing.
package compose

import (
	"context"

	"github.com/parlant-engine/convengine/internal/event"
	"github.com/parlant-engine/convengine/internal/llm"
	"github.com/parlant-engine/convengine/internal/model"
	"github.com/parlant-engine/convengine/internal/store"
	"github.com/parlant-engine/convengine/internal/telemetry"
)

// GenerationContext is the read-only snapshot a composer renders its
// prompts from, mirroring the relevant subset of model.LoadedContext.
type GenerationContext struct {
	Session             model.Session
	Agent               model.Agent
	Customer            model.Customer
	Interaction         []model.Event
	OrdinaryMatches     []model.GuidelineMatch
	ToolEnabledMatches  []model.GuidelineMatch
	ToolResults         []model.ToolResult
	GlossaryTerms       []model.GlossaryTerm
	Capabilities        []model.Capability
	ContextVariables    []model.ContextVariable
	ToolInsights        model.ToolInsights
	ActiveJourneys      []model.Journey
}

// Draft is the composer's intermediate, not-yet-final reply.
type Draft struct {
	Message string `json:"message"`
}

func draftSchema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"message": map[string]any{"type": "string"}},
		"required":   []string{"message"},
	}
}

// Composer is implemented by FluidGenerator and CannedResponseGenerator.
// Compose returns the final reply text (pre-splitting) and the rendering
// metadata the caller attaches to each message event.
type Composer interface {
	Compose(ctx context.Context, gctx GenerationContext) (Result, error)
}

// Result is one composer's finished output, ready for message splitting.
type Result struct {
	Text            string
	Draft           string
	CannedResponses []string
	Tags            []string
}

// HookOutcome mirrors spec.md §9's explicit Continue|Bail result variant
// used by every engine hook, including on_message_generated.
type HookOutcome int

const (
	Continue HookOutcome = iota
	Bail
)

// MessageHook is invoked once per split chunk before it is emitted.
type MessageHook func(ctx context.Context, chunk string) HookOutcome

// Dependencies bundles the collaborators every composer needs, following
// spec.md §9's explicit-constructor-parameter-object convention.
type Dependencies struct {
	Gen             llm.Generator
	CannedResponses store.CannedResponseStore
	Emitter         event.Emitter
	Logger          telemetry.Logger
	Tracer          telemetry.Tracer
}

func (d Dependencies) withDefaults() Dependencies {
	if d.Logger == nil {
		d.Logger = telemetry.NewNoopLogger()
	}
	if d.Tracer == nil {
		d.Tracer = telemetry.NewNoopTracer()
	}
	return d
}

// New returns the Composer selected by agent.Composition per §6.5.
func New(agent model.Agent, deps Dependencies) Composer {
	deps = deps.withDefaults()
	switch agent.Composition {
	case model.CompositionFluid:
		return &FluidGenerator{Deps: deps}
	default:
		return &CannedResponseGenerator{Deps: deps, Mode: agent.Composition}
	}
}
