// Package store declares the narrow interfaces the engine uses to reach its
// external collaborators (§6.1 of the specification): persistent stores for
// sessions, events, agents, guidelines, journeys, canned responses, context
// variables, glossary terms, and capabilities. The one concrete
// implementation in this module is the inmem subpackage, used by tests and
// local development; no durable backend is included.
package store

import (
	"context"

	"github.com/parlant-engine/convengine/internal/model"
)

// EventFilter narrows ListEventsSince results.
type EventFilter struct {
	Kinds   []model.EventKind
	Sources []model.EventSource
}

// SessionStore reads sessions and appends events to their logs.
type SessionStore interface {
	// CreateSession allocates a new session for agentID/customerID. Needed
	// by §6.3's chat endpoint, whose session_id request field is optional:
	// the server creates one on the caller's behalf when it is omitted.
	CreateSession(ctx context.Context, agentID, customerID string, mode model.SessionMode, title string) (model.Session, error)
	Read(ctx context.Context, sessionID string) (model.Session, error)
	// CreateEvent appends an event to the session log, assigning the next
	// gap-free offset, and returns the persisted Event.
	CreateEvent(ctx context.Context, sessionID string, kind model.EventKind, source model.EventSource, correlationID string, data map[string]any) (model.Event, error)
	ListEventsSince(ctx context.Context, sessionID string, minOffset int, filter EventFilter) ([]model.Event, error)
	// AppendAgentState appends a new AgentState snapshot to the session,
	// called once at the end of post-processing (§4.1 step 12).
	AppendAgentState(ctx context.Context, sessionID string, state model.AgentState) error
	// SetTitle updates a session's title (used by auto-title generation).
	SetTitle(ctx context.Context, sessionID string, title string) error
}

// AgentStore reads agent definitions.
type AgentStore interface {
	Read(ctx context.Context, agentID string) (model.Agent, error)
}

// CustomerStore reads customer identities.
type CustomerStore interface {
	Read(ctx context.Context, customerID string) (model.Customer, error)
}

// GuidelineStore lists guidelines, optionally filtered by tag.
type GuidelineStore interface {
	List(ctx context.Context, tags []string) ([]model.Guideline, error)
}

// JourneyStore reads journeys and finds the ones relevant to a query.
type JourneyStore interface {
	Read(ctx context.Context, journeyID string) (model.Journey, error)
	ListNodes(ctx context.Context, journeyID string) ([]model.JourneyNode, error)
	ListEdges(ctx context.Context, journeyID string) ([]model.JourneyEdge, error)
	// ListAll returns every journey declared for agentID, the "available" set
	// FindRelevant narrows per turn. Not named directly in §6.1's prose but
	// required by it: FindRelevant takes "available" as an argument, which
	// must come from somewhere.
	ListAll(ctx context.Context, agentID string) ([]model.Journey, error)
	// FindRelevant returns up to maxN journeys from available whose purpose
	// matches query well enough to be considered active this turn.
	FindRelevant(ctx context.Context, query string, available []model.Journey, maxN int) ([]model.Journey, error)
}

// GuidelineToolAssociations maps guidelines to the tools they may invoke, by
// exact id (not semantic match).
type GuidelineToolAssociations interface {
	FindAll(ctx context.Context) (map[string][]model.ToolID, error)
}

// JourneyNodeToolAssociations maps a journey node to the tools its action
// may invoke.
type JourneyNodeToolAssociations interface {
	Find(ctx context.Context, nodeID string) ([]model.ToolID, error)
}

// CannedResponseStore finds canned responses relevant to the current agent,
// active journeys, and matched guidelines.
type CannedResponseStore interface {
	FindForContext(ctx context.Context, agent model.Agent, journeys []model.Journey, guidelines []model.Guideline) ([]model.CannedResponse, error)
	// FindByTag returns every canned response carrying tag, used to source
	// preamble candidates and the NoMatch fallback template.
	FindByTag(ctx context.Context, tag string) ([]model.CannedResponse, error)
}

// ContextVariableStore reads agent/customer scoped variables.
type ContextVariableStore interface {
	Read(ctx context.Context, agentID, customerID string) ([]model.ContextVariable, error)
}

// GlossaryStore finds glossary terms relevant to a query.
type GlossaryStore interface {
	FindRelevant(ctx context.Context, query string, maxTerms int) ([]model.GlossaryTerm, error)
}

// CapabilityStore finds capabilities declared for an agent.
type CapabilityStore interface {
	Find(ctx context.Context, agentID string) ([]model.Capability, error)
}

// ToolExecutor invokes a tool by id with validated arguments.
type ToolExecutor interface {
	Lookup(ctx context.Context, id model.ToolID) (model.Tool, bool)
	Execute(ctx context.Context, call model.ToolCall) (model.ToolResult, error)
}
