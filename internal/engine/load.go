package engine

import (
	"context"
	"fmt"

	"github.com/parlant-engine/convengine/internal/model"
	"github.com/parlant-engine/convengine/internal/store"
)

// loadContext implements §4.1 stage 1: read session, agent, customer,
// interaction history, context variables, capabilities, and every enabled
// guideline/journey declared for the agent, into a fresh LoadedContext.
func (e *Engine) loadContext(ctx context.Context, sessionID, agentID string) (*model.LoadedContext, error) {
	session, err := e.deps.Sessions.Read(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("engine: read session: %w", err)
	}

	agent, err := e.deps.Agents.Read(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("engine: read agent: %w", err)
	}

	lctx := &model.LoadedContext{Session: session, Agent: agent}

	if session.Mode == model.SessionModeManual {
		return lctx, nil
	}

	customer, err := e.deps.Customers.Read(ctx, session.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("engine: read customer: %w", err)
	}
	lctx.Customer = customer

	interaction, err := e.deps.Sessions.ListEventsSince(ctx, sessionID, 0, store.EventFilter{})
	if err != nil {
		return nil, fmt.Errorf("engine: list interaction: %w", err)
	}
	lctx.Interaction = interaction

	guidelines, err := e.deps.Guidelines.List(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("engine: list guidelines: %w", err)
	}
	lctx.Guidelines = guidelines

	journeys, err := e.deps.Journeys.ListAll(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("engine: list journeys: %w", err)
	}
	lctx.AvailableJourneys = journeys

	vars, err := e.deps.ContextVariables.Read(ctx, agentID, session.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("engine: read context variables: %w", err)
	}
	lctx.ContextVariables = vars

	caps, err := e.deps.Capabilities.Find(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("engine: find capabilities: %w", err)
	}
	lctx.Capabilities = caps

	lctx.AppliedGuidelineIDs = session.LastAgentState().AppliedGuidelineIDs

	return lctx, nil
}

// lastCustomerMessage returns the most recent customer Message event's text,
// used as the query for journey/glossary relevance lookups.
func lastCustomerMessage(interaction []model.Event) string {
	for i := len(interaction) - 1; i >= 0; i-- {
		ev := interaction[i]
		if ev.Kind == model.EventKindMessage && ev.Source == model.SourceCustomer {
			if s, ok := ev.Data["message"].(string); ok {
				return s
			}
		}
	}
	return ""
}

// lastAgentMessageWasPreamble reports whether the most recent AIAgent
// message event carried the "preamble" tag, used by §4.4.1's policy.
func lastAgentMessageWasPreamble(interaction []model.Event) bool {
	for i := len(interaction) - 1; i >= 0; i-- {
		ev := interaction[i]
		if ev.Kind != model.EventKindMessage || ev.Source != model.SourceAIAgent {
			continue
		}
		tags, _ := ev.Data["tags"].([]string)
		for _, t := range tags {
			if t == "preamble" {
				return true
			}
		}
		return false
	}
	return false
}
