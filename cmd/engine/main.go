// Command engine runs the conversational processing engine behind the thin
// HTTP wire adapter described in §6.3, wiring the in-memory reference
// stores, the Anthropic-backed generator, and the Processing Engine
// together.
package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"goa.design/clue/log"

	"github.com/parlant-engine/convengine/internal/engine"
	"github.com/parlant-engine/convengine/internal/httpapi"
	"github.com/parlant-engine/convengine/internal/llm/anthropic"
	"github.com/parlant-engine/convengine/internal/model"
	"github.com/parlant-engine/convengine/internal/ratelimit"
	"github.com/parlant-engine/convengine/internal/store/inmem"
	"github.com/parlant-engine/convengine/internal/task"
	"github.com/parlant-engine/convengine/internal/telemetry"
)

func main() {
	format := log.FormatJSON
	if log.IsTerminal() {
		format = log.FormatTerminal
	}
	ctx := log.Context(context.Background(), log.WithFormat(format))
	if os.Getenv("LOG_DEBUG") != "" {
		ctx = log.Context(ctx, log.WithDebug())
	}
	logger := telemetry.NewClueLogger()

	gen, err := anthropic.NewFromAPIKey(os.Getenv("ANTHROPIC_API_KEY"), envOr("ANTHROPIC_MODEL", "claude-sonnet-4-5"), 4096)
	if err != nil {
		log.Error(ctx, err, log.KV{K: "msg", V: "failed to construct LLM generator"})
		os.Exit(1)
	}

	stores := newDemoStores()
	limiter := ratelimit.New(5, 10)
	tracer := telemetry.NewClueTracer()

	engineDeps := engine.Dependencies{
		Sessions:                    stores.sessions,
		Agents:                      stores.agents,
		Customers:                   stores.customers,
		Guidelines:                  stores.guidelines,
		Journeys:                    stores.journeys,
		GuidelineToolAssociations:   stores.guidelineTools,
		JourneyNodeToolAssociations: stores.journeyNodeTools,
		CannedResponses:             stores.canned,
		ContextVariables:            stores.contextVars,
		Glossary:                    stores.glossary,
		Capabilities:                stores.capabilities,
		Tools:                       stores.tools,
		Gen:                         gen,
		Limiter:                     limiter,
		Logger:                      logger,
		Tracer:                      tracer,
	}

	server := httpapi.New(httpapi.Dependencies{
		Sessions:       stores.sessions,
		Tasks:          task.New(),
		EngineDeps:     engineDeps,
		Logger:         logger,
		DefaultTimeout: 30 * time.Second,
	})

	addr := envOr("LISTEN_ADDR", ":8080")
	log.Print(ctx, log.KV{K: "msg", V: "listening"}, log.KV{K: "addr", V: addr})
	if err := http.ListenAndServe(addr, server.Routes()); err != nil {
		log.Error(ctx, err, log.KV{K: "msg", V: "server exited"})
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// demoStores bundles every in-memory store binding for local development.
// Production deployments replace each field with a durable implementation
// behind the same internal/store interfaces.
type demoStores struct {
	sessions         *inmem.SessionStore
	agents           *inmem.AgentStore
	customers        *inmem.CustomerStore
	guidelines       *inmem.GuidelineStore
	journeys         *inmem.JourneyStore
	guidelineTools   *inmem.GuidelineToolAssociations
	journeyNodeTools *inmem.JourneyNodeToolAssociations
	canned           *inmem.CannedResponseStore
	contextVars      *inmem.ContextVariableStore
	glossary         *inmem.GlossaryStore
	capabilities     *inmem.CapabilityStore
	tools            *inmem.ToolRegistry
}

func newDemoStores() *demoStores {
	agent := model.Agent{
		ID:                  "agent-1",
		Name:                "Assistant",
		Composition:         model.CompositionFluid,
		MaxEngineIterations: 3,
	}

	return &demoStores{
		sessions:         inmem.NewSessionStore(),
		agents:           inmem.NewAgentStore(agent),
		customers:        inmem.NewCustomerStore(),
		guidelines:       inmem.NewGuidelineStore(),
		journeys:         inmem.NewJourneyStore(),
		guidelineTools:   inmem.NewGuidelineToolAssociations(nil),
		journeyNodeTools: inmem.NewJourneyNodeToolAssociations(nil),
		canned:           inmem.NewCannedResponseStore(),
		contextVars:      inmem.NewContextVariableStore(nil),
		glossary:         inmem.NewGlossaryStore(),
		capabilities:     inmem.NewCapabilityStore(nil),
		tools:            inmem.NewToolRegistry(),
	}
}
