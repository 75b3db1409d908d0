// Package inmem provides in-memory implementations of every store interface
// declared in internal/store. They are intended for tests and local
// development; production deployments swap in durable bindings behind the
// same interfaces.
package inmem

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/parlant-engine/convengine/internal/model"
	"github.com/parlant-engine/convengine/internal/store"
)

// ErrNotFound is returned when a lookup fails against an in-memory store.
var ErrNotFound = errors.New("inmem: not found")

// SessionStore is an in-memory, concurrency-safe store.SessionStore.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]model.Session
	events   map[string][]model.Event
}

// NewSessionStore returns an empty SessionStore.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]model.Session),
		events:   make(map[string][]model.Event),
	}
}

// Put seeds a session, replacing any prior value with the same id.
func (s *SessionStore) Put(sess model.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
}

// CreateSession implements store.SessionStore.
func (s *SessionStore) CreateSession(_ context.Context, agentID, customerID string, mode model.SessionMode, title string) (model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := model.Session{
		ID:         uuid.NewString(),
		AgentID:    agentID,
		CustomerID: customerID,
		CreatedAt:  time.Now().UTC(),
		Mode:       mode,
		Title:      title,
	}
	s.sessions[sess.ID] = sess
	return cloneSession(sess), nil
}

// Read implements store.SessionStore.
func (s *SessionStore) Read(_ context.Context, sessionID string) (model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return model.Session{}, ErrNotFound
	}
	return cloneSession(sess), nil
}

// CreateEvent implements store.SessionStore, assigning the next gap-free
// offset under the store's lock.
func (s *SessionStore) CreateEvent(_ context.Context, sessionID string, kind model.EventKind, source model.EventSource, correlationID string, data map[string]any) (model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	log := s.events[sessionID]
	ev := model.Event{
		ID:            uuid.NewString(),
		SessionID:     sessionID,
		Offset:        len(log),
		Kind:          kind,
		Source:        source,
		CorrelationID: correlationID,
		CreatedAt:     time.Now().UTC(),
		Data:          cloneData(data),
	}
	s.events[sessionID] = append(log, ev)
	return ev, nil
}

// ListEventsSince implements store.SessionStore.
func (s *SessionStore) ListEventsSince(_ context.Context, sessionID string, minOffset int, filter store.EventFilter) ([]model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Event
	for _, ev := range s.events[sessionID] {
		if ev.Offset < minOffset {
			continue
		}
		if len(filter.Kinds) > 0 && !containsKind(filter.Kinds, ev.Kind) {
			continue
		}
		if len(filter.Sources) > 0 && !containsSource(filter.Sources, ev.Source) {
			continue
		}
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Offset < out[j].Offset })
	return out, nil
}

// AppendAgentState implements store.SessionStore.
func (s *SessionStore) AppendAgentState(_ context.Context, sessionID string, state model.AgentState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	sess.AgentStates = append(sess.AgentStates, state)
	s.sessions[sessionID] = sess
	return nil
}

// SetTitle implements store.SessionStore.
func (s *SessionStore) SetTitle(_ context.Context, sessionID string, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	sess.Title = title
	s.sessions[sessionID] = sess
	return nil
}

func containsKind(kinds []model.EventKind, k model.EventKind) bool {
	for _, x := range kinds {
		if x == k {
			return true
		}
	}
	return false
}

func containsSource(sources []model.EventSource, s model.EventSource) bool {
	for _, x := range sources {
		if x == s {
			return true
		}
	}
	return false
}

func cloneSession(in model.Session) model.Session {
	out := in
	out.AgentStates = append([]model.AgentState(nil), in.AgentStates...)
	return out
}

func cloneData(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// AgentStore is an in-memory store.AgentStore.
type AgentStore struct {
	mu     sync.RWMutex
	agents map[string]model.Agent
}

// NewAgentStore returns an AgentStore seeded with agents.
func NewAgentStore(agents ...model.Agent) *AgentStore {
	s := &AgentStore{agents: make(map[string]model.Agent)}
	for _, a := range agents {
		s.agents[a.ID] = a
	}
	return s
}

// Read implements store.AgentStore.
func (s *AgentStore) Read(_ context.Context, agentID string) (model.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.agents[agentID]
	if !ok {
		return model.Agent{}, ErrNotFound
	}
	return a, nil
}

// CustomerStore is an in-memory store.CustomerStore.
type CustomerStore struct {
	mu        sync.RWMutex
	customers map[string]model.Customer
}

// NewCustomerStore returns a CustomerStore seeded with customers.
func NewCustomerStore(customers ...model.Customer) *CustomerStore {
	s := &CustomerStore{customers: make(map[string]model.Customer)}
	for _, c := range customers {
		s.customers[c.ID] = c
	}
	return s
}

// Read implements store.CustomerStore.
func (s *CustomerStore) Read(_ context.Context, customerID string) (model.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.customers[customerID]
	if !ok {
		return model.Customer{ID: customerID}, nil
	}
	return c, nil
}

// GuidelineStore is an in-memory store.GuidelineStore.
type GuidelineStore struct {
	mu         sync.RWMutex
	guidelines []model.Guideline
}

// NewGuidelineStore returns a GuidelineStore seeded with guidelines.
func NewGuidelineStore(guidelines ...model.Guideline) *GuidelineStore {
	return &GuidelineStore{guidelines: guidelines}
}

// List implements store.GuidelineStore.
func (s *GuidelineStore) List(_ context.Context, tags []string) ([]model.Guideline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(tags) == 0 {
		return append([]model.Guideline(nil), s.guidelines...), nil
	}
	var out []model.Guideline
	for _, g := range s.guidelines {
		if hasAnyTag(g.Tags, tags) {
			out = append(out, g)
		}
	}
	return out, nil
}

func hasAnyTag(have, want []string) bool {
	for _, h := range have {
		for _, w := range want {
			if h == w {
				return true
			}
		}
	}
	return false
}

// JourneyStore is an in-memory store.JourneyStore.
type JourneyStore struct {
	mu       sync.RWMutex
	journeys map[string]model.Journey
}

// NewJourneyStore returns a JourneyStore seeded with journeys.
func NewJourneyStore(journeys ...model.Journey) *JourneyStore {
	s := &JourneyStore{journeys: make(map[string]model.Journey)}
	for _, j := range journeys {
		s.journeys[j.ID] = j
	}
	return s
}

// ListAll implements store.JourneyStore. The in-memory implementation
// ignores agentID and returns every seeded journey; production bindings
// scope journeys to the agents they were authored for.
func (s *JourneyStore) ListAll(_ context.Context, _ string) ([]model.Journey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Journey, 0, len(s.journeys))
	for _, j := range s.journeys {
		out = append(out, j)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out, nil
}

// Read implements store.JourneyStore.
func (s *JourneyStore) Read(_ context.Context, journeyID string) (model.Journey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.journeys[journeyID]
	if !ok {
		return model.Journey{}, ErrNotFound
	}
	return j, nil
}

// ListNodes implements store.JourneyStore.
func (s *JourneyStore) ListNodes(ctx context.Context, journeyID string) ([]model.JourneyNode, error) {
	j, err := s.Read(ctx, journeyID)
	if err != nil {
		return nil, err
	}
	out := make([]model.JourneyNode, 0, len(j.Nodes))
	for _, n := range j.Nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out, nil
}

// ListEdges implements store.JourneyStore.
func (s *JourneyStore) ListEdges(ctx context.Context, journeyID string) ([]model.JourneyEdge, error) {
	j, err := s.Read(ctx, journeyID)
	if err != nil {
		return nil, err
	}
	return append([]model.JourneyEdge(nil), j.Edges...), nil
}

// FindRelevant implements store.JourneyStore. The in-memory implementation
// returns the first maxN available journeys; production bindings replace
// this with an embedding-similarity search against query.
func (s *JourneyStore) FindRelevant(_ context.Context, _ string, available []model.Journey, maxN int) ([]model.Journey, error) {
	if maxN <= 0 || maxN > len(available) {
		maxN = len(available)
	}
	return append([]model.Journey(nil), available[:maxN]...), nil
}

// GuidelineToolAssociations is an in-memory store.GuidelineToolAssociations.
type GuidelineToolAssociations struct {
	mu    sync.RWMutex
	assoc map[string][]model.ToolID
}

// NewGuidelineToolAssociations returns an associations store seeded from assoc.
func NewGuidelineToolAssociations(assoc map[string][]model.ToolID) *GuidelineToolAssociations {
	if assoc == nil {
		assoc = map[string][]model.ToolID{}
	}
	return &GuidelineToolAssociations{assoc: assoc}
}

// FindAll implements store.GuidelineToolAssociations.
func (s *GuidelineToolAssociations) FindAll(_ context.Context) (map[string][]model.ToolID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]model.ToolID, len(s.assoc))
	for k, v := range s.assoc {
		out[k] = append([]model.ToolID(nil), v...)
	}
	return out, nil
}

// JourneyNodeToolAssociations is an in-memory store.JourneyNodeToolAssociations.
type JourneyNodeToolAssociations struct {
	mu    sync.RWMutex
	assoc map[string][]model.ToolID
}

// NewJourneyNodeToolAssociations returns an associations store seeded from assoc.
func NewJourneyNodeToolAssociations(assoc map[string][]model.ToolID) *JourneyNodeToolAssociations {
	if assoc == nil {
		assoc = map[string][]model.ToolID{}
	}
	return &JourneyNodeToolAssociations{assoc: assoc}
}

// Find implements store.JourneyNodeToolAssociations.
func (s *JourneyNodeToolAssociations) Find(_ context.Context, nodeID string) ([]model.ToolID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.ToolID(nil), s.assoc[nodeID]...), nil
}

// CannedResponseStore is an in-memory store.CannedResponseStore.
type CannedResponseStore struct {
	mu        sync.RWMutex
	responses []model.CannedResponse
}

// NewCannedResponseStore returns a CannedResponseStore seeded with responses.
func NewCannedResponseStore(responses ...model.CannedResponse) *CannedResponseStore {
	return &CannedResponseStore{responses: responses}
}

// FindForContext implements store.CannedResponseStore. The in-memory
// implementation returns every stored response; production bindings narrow
// by semantic relevance to agent/journeys/guidelines.
func (s *CannedResponseStore) FindForContext(_ context.Context, _ model.Agent, _ []model.Journey, _ []model.Guideline) ([]model.CannedResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.CannedResponse(nil), s.responses...), nil
}

// FindByTag implements store.CannedResponseStore.
func (s *CannedResponseStore) FindByTag(_ context.Context, tag string) ([]model.CannedResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.CannedResponse
	for _, r := range s.responses {
		if r.HasTag(tag) {
			out = append(out, r)
		}
	}
	return out, nil
}

// ContextVariableStore is an in-memory store.ContextVariableStore.
type ContextVariableStore struct {
	mu   sync.RWMutex
	vars map[string][]model.ContextVariable
}

// NewContextVariableStore returns a ContextVariableStore seeded per
// "agentID/customerID" key.
func NewContextVariableStore(vars map[string][]model.ContextVariable) *ContextVariableStore {
	if vars == nil {
		vars = map[string][]model.ContextVariable{}
	}
	return &ContextVariableStore{vars: vars}
}

// Read implements store.ContextVariableStore.
func (s *ContextVariableStore) Read(_ context.Context, agentID, customerID string) ([]model.ContextVariable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.ContextVariable(nil), s.vars[agentID+"/"+customerID]...), nil
}

// GlossaryStore is an in-memory store.GlossaryStore.
type GlossaryStore struct {
	mu    sync.RWMutex
	terms []model.GlossaryTerm
}

// NewGlossaryStore returns a GlossaryStore seeded with terms.
func NewGlossaryStore(terms ...model.GlossaryTerm) *GlossaryStore {
	return &GlossaryStore{terms: terms}
}

// FindRelevant implements store.GlossaryStore. The in-memory implementation
// returns up to maxTerms of every stored term; production bindings narrow by
// embedding relevance to query.
func (s *GlossaryStore) FindRelevant(_ context.Context, _ string, maxTerms int) ([]model.GlossaryTerm, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if maxTerms <= 0 || maxTerms > len(s.terms) {
		maxTerms = len(s.terms)
	}
	return append([]model.GlossaryTerm(nil), s.terms[:maxTerms]...), nil
}

// CapabilityStore is an in-memory store.CapabilityStore.
type CapabilityStore struct {
	mu           sync.RWMutex
	capabilities map[string][]model.Capability
}

// NewCapabilityStore returns a CapabilityStore seeded per agent id.
func NewCapabilityStore(capabilities map[string][]model.Capability) *CapabilityStore {
	if capabilities == nil {
		capabilities = map[string][]model.Capability{}
	}
	return &CapabilityStore{capabilities: capabilities}
}

// Find implements store.CapabilityStore.
func (s *CapabilityStore) Find(_ context.Context, agentID string) ([]model.Capability, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Capability(nil), s.capabilities[agentID]...), nil
}

// ToolHandler is the local stand-in for a tool service's RPC endpoint: it
// receives validated arguments and returns the raw result data a real tool
// service would (§6.1: ToolExecutor is a thin client over one or more
// externally hosted tool services).
type ToolHandler func(ctx context.Context, args map[string]any) (model.ToolResult, error)

// ToolRegistry is an in-memory store.ToolExecutor backed by Go functions,
// used for tests and local development in place of a real tool-service
// client.
type ToolRegistry struct {
	mu       sync.RWMutex
	tools    map[model.ToolID]model.Tool
	handlers map[model.ToolID]ToolHandler
}

// NewToolRegistry returns an empty ToolRegistry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{
		tools:    map[model.ToolID]model.Tool{},
		handlers: map[model.ToolID]ToolHandler{},
	}
}

// Register adds a tool definition and the handler that executes it.
func (r *ToolRegistry) Register(tool model.Tool, handler ToolHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.ID] = tool
	r.handlers[tool.ID] = handler
}

// Lookup implements store.ToolExecutor.
func (r *ToolRegistry) Lookup(_ context.Context, id model.ToolID) (model.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[id]
	return t, ok
}

// Execute implements store.ToolExecutor.
func (r *ToolRegistry) Execute(ctx context.Context, call model.ToolCall) (model.ToolResult, error) {
	r.mu.RLock()
	handler, ok := r.handlers[call.ToolID]
	r.mu.RUnlock()
	if !ok {
		return model.ToolResult{}, fmt.Errorf("inmem: no handler registered for tool %s", call.ToolID.String())
	}
	result, err := handler(ctx, call.Arguments)
	result.Call = call
	return result, err
}
