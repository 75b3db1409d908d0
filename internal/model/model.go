// Package model defines the core entities of the conversational processing
// engine: agents, sessions, events, guidelines, journeys, tools, and canned
// responses. These are plain data types; encoding onto the wire lives in
// internal/event.
package model

import "time"

// CompositionMode selects which Message Composer pipeline an agent uses.
type CompositionMode string

const (
	CompositionFluid           CompositionMode = "fluid"
	CompositionCannedStrict    CompositionMode = "canned_strict"
	CompositionCannedComposited CompositionMode = "canned_composited"
	CompositionCannedFluid     CompositionMode = "canned_fluid"
)

// Agent is the identity of the replying party. Immutable within a
// processing cycle.
type Agent struct {
	ID                 string
	Name               string
	Description        string
	Composition        CompositionMode
	MaxEngineIterations int
	Tags               []string
}

// SessionMode controls whether the engine processes a session at all.
type SessionMode string

const (
	SessionModeAuto   SessionMode = "auto"
	SessionModeManual SessionMode = "manual"
)

// AgentState is a snapshot appended once per completed processing cycle. It
// tracks which guidelines have already been "applied" and where each active
// journey's path currently stands.
type AgentState struct {
	AppliedGuidelineIDs map[string]struct{}
	JourneyPathIndexes  map[string]int
	CreatedAt           time.Time
}

// NewAgentState returns an empty AgentState ready to be populated by
// post-processing.
func NewAgentState() AgentState {
	return AgentState{
		AppliedGuidelineIDs: map[string]struct{}{},
		JourneyPathIndexes:  map[string]int{},
	}
}

// Clone returns a deep copy suitable for appending a new cycle's updates
// without mutating the prior snapshot.
func (a AgentState) Clone() AgentState {
	n := NewAgentState()
	for k := range a.AppliedGuidelineIDs {
		n.AppliedGuidelineIDs[k] = struct{}{}
	}
	for k, v := range a.JourneyPathIndexes {
		n.JourneyPathIndexes[k] = v
	}
	n.CreatedAt = a.CreatedAt
	return n
}

// Session is an ordered conversation between a customer and an agent.
type Session struct {
	ID         string
	AgentID    string
	CustomerID string
	CreatedAt  time.Time
	Mode       SessionMode
	Title      string
	// AgentStates holds one snapshot per completed processing cycle.
	// AgentStates[len-1] reflects the state *before* the current cycle.
	AgentStates []AgentState
}

// LastAgentState returns the most recently appended AgentState, or a fresh
// empty one if the session has never completed a cycle.
func (s Session) LastAgentState() AgentState {
	if len(s.AgentStates) == 0 {
		return NewAgentState()
	}
	return s.AgentStates[len(s.AgentStates)-1]
}

// EventKind classifies an Event's payload shape.
type EventKind string

const (
	EventKindMessage EventKind = "message"
	EventKindTool    EventKind = "tool"
	EventKindStatus  EventKind = "status"
	EventKindCustom  EventKind = "custom"
)

// EventSource identifies who produced an Event.
type EventSource string

const (
	SourceCustomer   EventSource = "customer"
	SourceAIAgent    EventSource = "ai_agent"
	SourceHumanAgent EventSource = "human_agent"
	SourceSystem     EventSource = "system"
)

// Event is an append-only element of the session log. Offsets are
// gap-free and monotonic per session.
type Event struct {
	ID            string
	SessionID     string
	Offset        int
	Kind          EventKind
	Source        EventSource
	CorrelationID string
	CreatedAt     time.Time
	Data          map[string]any
}

// GuidelineMetadata carries the flags the matcher and engine need beyond
// condition/action text.
type GuidelineMetadata struct {
	Continuous                   bool
	CustomerDependentActionData  bool
	// JourneyNodeJourneyID is set when this guideline was projected from a
	// journey (edge, node) pair; empty for ordinary guidelines.
	JourneyNodeJourneyID string
	JourneyNodeID        string
	JourneyEdgeID        string
}

// Guideline is a behavioral rule: condition, optional action, tags, and
// metadata flags.
type Guideline struct {
	ID       string
	Condition string
	Action    string
	Enabled   bool
	Tags      []string
	Metadata  GuidelineMetadata
}

// IsObservational reports whether the guideline has no action text.
func (g Guideline) IsObservational() bool { return g.Action == "" }

// IsJourneyNode reports whether this guideline was projected from a journey.
func (g Guideline) IsJourneyNode() bool { return g.Metadata.JourneyNodeJourneyID != "" }

// JourneyNodeGuidelineID builds the synthetic id "journey_node:<node>[:<edge>]".
func JourneyNodeGuidelineID(nodeID, edgeID string) string {
	if edgeID == "" {
		return "journey_node:" + nodeID
	}
	return "journey_node:" + nodeID + ":" + edgeID
}

// JourneyNode is one step of a Journey graph.
type JourneyNode struct {
	ID     string
	Action string
}

// JourneyEdge connects two nodes with an optional natural-language
// transition condition.
type JourneyEdge struct {
	ID        string
	FromNode  string
	ToNode    string
	Condition string
}

// Journey is a graph of nodes and edges encoding a multi-step process. The
// graph may contain cycles; projection onto guidelines tracks a visited set
// of (edge, node) pairs to avoid infinite traversal.
type Journey struct {
	ID    string
	Title string
	Nodes map[string]JourneyNode
	Edges []JourneyEdge
}

// GuidelineMatch is the matcher's decision that a guideline applies this turn.
type GuidelineMatch struct {
	Guideline Guideline
	Score     float64
	Rationale string
	Metadata  map[string]any
}

// ToolID identifies a tool by its owning service and its name within that
// service.
type ToolID struct {
	Service string
	Name    string
}

// String renders the composite key "service:name".
func (t ToolID) String() string { return t.Service + ":" + t.Name }

// ParamSource enumerates where a tool parameter's value may be sourced from.
type ParamSource string

const (
	ParamSourceAny ParamSource = "any"
)

// ToolParam describes one parameter accepted by a Tool.
type ToolParam struct {
	Name        string
	Description string
	Required    bool
	JSONSchema  map[string]any
}

// Tool is a callable external capability with a parameter schema.
type Tool struct {
	ID          ToolID
	Description string
	Params      []ToolParam
}

// RequiredParams returns the subset of Params marked required.
func (t Tool) RequiredParams() []ToolParam {
	var out []ToolParam
	for _, p := range t.Params {
		if p.Required {
			out = append(out, p)
		}
	}
	return out
}

// ArgumentValidity classifies one evaluated tool-call argument.
type ArgumentValidity string

const (
	ArgValid   ArgumentValidity = "valid"
	ArgInvalid ArgumentValidity = "invalid"
	ArgMissing ArgumentValidity = "missing"
)

// ArgumentEvaluation is the model's per-parameter verdict for one candidate
// tool call.
type ArgumentEvaluation struct {
	ParamName string
	Validity  ArgumentValidity
	Value     string
	Optional  bool
}

// ToolCall is a staged invocation with validated arguments.
type ToolCall struct {
	ToolID    ToolID
	Arguments map[string]any
	// GuidelinePriority orders missing/invalid insights when several
	// guidelines reference the same tool.
	GuidelinePriority int
}

// ToolResult is the outcome of executing a ToolCall.
type ToolResult struct {
	Call    ToolCall
	Data    any
	Error   string
	// CannedResponseFields maps template variable names to substitution
	// values extracted from the tool result.
	CannedResponseFields map[string]string
	// CannedResponses lists fallback textual responses the tool itself
	// suggests when no better canned response is found.
	CannedResponses []string
}

// ToolParamInsight records one parameter the engine needed but did not have
// this turn, with the precedence of the guideline that requested it.
type ToolParamInsight struct {
	ToolID    ToolID
	ParamName string
	Precedence int
}

// ToolInsights is the Tool Caller's record of parameters needed but
// unavailable this turn, split by failure class.
type ToolInsights struct {
	MissingData []ToolParamInsight
	InvalidData []ToolParamInsight
}

// CannedResponse is a pre-authored reply template with declared fields and
// retrieval signals.
type CannedResponse struct {
	ID       string
	Template string
	Fields   []string
	Signals  []string
	Tags     []string
}

// HasTag reports whether tag is present in the canned response's tag list.
func (c CannedResponse) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// ContextVariable is a named, agent/customer-scoped value available to
// prompts (e.g. plan tier, locale).
type ContextVariable struct {
	Key   string
	Value any
}

// GlossaryTerm is a domain term and its definition surfaced to prompts.
type GlossaryTerm struct {
	Term       string
	Definition string
}

// Capability describes an agent capability surfaced to prompts (distinct
// from a Tool: capabilities are descriptive, not invocable).
type Capability struct {
	Name        string
	Description string
}

// Customer identifies the counterpart in a Session.
type Customer struct {
	ID   string
	Name string
}

// Participant identifies the speaker attached to a Message event.
type Participant struct {
	ID          string
	DisplayName string
}
