package inmem

import (
	"context"
	"testing"

	"github.com/parlant-engine/convengine/internal/model"
	"github.com/parlant-engine/convengine/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStoreCreateSessionThenRead(t *testing.T) {
	s := NewSessionStore()
	ctx := context.Background()

	created, err := s.CreateSession(ctx, "agent1", "cust1", model.SessionModeAuto, "")
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	read, err := s.Read(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "agent1", read.AgentID)
	assert.Equal(t, "cust1", read.CustomerID)
}

func TestSessionStoreReadMissingReturnsErrNotFound(t *testing.T) {
	s := NewSessionStore()
	_, err := s.Read(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSessionStoreCreateEventAssignsGapFreeOffsets(t *testing.T) {
	s := NewSessionStore()
	ctx := context.Background()
	s.Put(model.Session{ID: "s1"})

	e1, err := s.CreateEvent(ctx, "s1", model.EventKindMessage, model.SourceCustomer, "", map[string]any{"message": "hi"})
	require.NoError(t, err)
	e2, err := s.CreateEvent(ctx, "s1", model.EventKindMessage, model.SourceCustomer, "", map[string]any{"message": "again"})
	require.NoError(t, err)

	assert.Equal(t, 0, e1.Offset)
	assert.Equal(t, 1, e2.Offset)
}

func TestSessionStoreListEventsSinceFiltersByOffsetAndKind(t *testing.T) {
	s := NewSessionStore()
	ctx := context.Background()
	s.Put(model.Session{ID: "s1"})
	_, _ = s.CreateEvent(ctx, "s1", model.EventKindMessage, model.SourceCustomer, "", nil)
	_, _ = s.CreateEvent(ctx, "s1", model.EventKindStatus, model.SourceSystem, "", nil)
	_, _ = s.CreateEvent(ctx, "s1", model.EventKindMessage, model.SourceAIAgent, "", nil)

	out, err := s.ListEventsSince(ctx, "s1", 1, store.EventFilter{})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, 1, out[0].Offset)

	out, err = s.ListEventsSince(ctx, "s1", 0, store.EventFilter{Kinds: []model.EventKind{model.EventKindStatus}})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, model.EventKindStatus, out[0].Kind)
}

func TestSessionStoreAppendAgentState(t *testing.T) {
	s := NewSessionStore()
	ctx := context.Background()
	s.Put(model.Session{ID: "s1"})

	err := s.AppendAgentState(ctx, "s1", model.NewAgentState())
	require.NoError(t, err)

	read, err := s.Read(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, read.AgentStates, 1)
}

func TestSessionStoreAppendAgentStateMissingSessionErrors(t *testing.T) {
	s := NewSessionStore()
	err := s.AppendAgentState(context.Background(), "missing", model.NewAgentState())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSessionStoreSetTitle(t *testing.T) {
	s := NewSessionStore()
	s.Put(model.Session{ID: "s1"})

	require.NoError(t, s.SetTitle(context.Background(), "s1", "New title"))

	read, _ := s.Read(context.Background(), "s1")
	assert.Equal(t, "New title", read.Title)
}

func TestSessionStoreReadReturnsIndependentCopy(t *testing.T) {
	s := NewSessionStore()
	s.Put(model.Session{ID: "s1"})

	read, _ := s.Read(context.Background(), "s1")
	read.AgentStates = append(read.AgentStates, model.NewAgentState())

	reread, _ := s.Read(context.Background(), "s1")
	assert.Empty(t, reread.AgentStates)
}

func TestAgentStoreReadKnownAndUnknown(t *testing.T) {
	s := NewAgentStore(model.Agent{ID: "a1", Name: "Helper"})

	a, err := s.Read(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, "Helper", a.Name)

	_, err = s.Read(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCustomerStoreReadUnknownReturnsBareCustomer(t *testing.T) {
	s := NewCustomerStore(model.Customer{ID: "c1", Name: "Ada"})

	known, err := s.Read(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", known.Name)

	unknown, err := s.Read(context.Background(), "c2")
	require.NoError(t, err)
	assert.Equal(t, "c2", unknown.ID)
	assert.Empty(t, unknown.Name)
}

func TestGuidelineStoreListAllWhenNoTagsGiven(t *testing.T) {
	s := NewGuidelineStore(
		model.Guideline{ID: "g1", Tags: []string{"billing"}},
		model.Guideline{ID: "g2"},
	)
	out, err := s.List(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestGuidelineStoreListFiltersByAnyMatchingTag(t *testing.T) {
	s := NewGuidelineStore(
		model.Guideline{ID: "g1", Tags: []string{"billing"}},
		model.Guideline{ID: "g2", Tags: []string{"shipping"}},
	)
	out, err := s.List(context.Background(), []string{"billing"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "g1", out[0].ID)
}

func TestJourneyStoreReadListNodesAndEdges(t *testing.T) {
	j := model.Journey{
		ID: "j1",
		Nodes: map[string]model.JourneyNode{
			"n2": {ID: "n2", Action: "second"},
			"n1": {ID: "n1", Action: "first"},
		},
		Edges: []model.JourneyEdge{{ID: "e1", FromNode: "n1", ToNode: "n2"}},
	}
	s := NewJourneyStore(j)
	ctx := context.Background()

	read, err := s.Read(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, "j1", read.ID)

	nodes, err := s.ListNodes(ctx, "j1")
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, "n1", nodes[0].ID) // sorted

	edges, err := s.ListEdges(ctx, "j1")
	require.NoError(t, err)
	require.Len(t, edges, 1)
}

func TestJourneyStoreReadMissingErrors(t *testing.T) {
	s := NewJourneyStore()
	_, err := s.Read(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestJourneyStoreListAllSortsByID(t *testing.T) {
	s := NewJourneyStore(
		model.Journey{ID: "zeta"},
		model.Journey{ID: "alpha"},
	)
	out, err := s.ListAll(context.Background(), "agent1")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "alpha", out[0].ID)
}

func TestJourneyStoreFindRelevantCapsAtMaxN(t *testing.T) {
	s := NewJourneyStore()
	available := []model.Journey{{ID: "j1"}, {ID: "j2"}, {ID: "j3"}}
	out, err := s.FindRelevant(context.Background(), "query", available, 2)
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestJourneyStoreFindRelevantZeroMeansAll(t *testing.T) {
	s := NewJourneyStore()
	available := []model.Journey{{ID: "j1"}, {ID: "j2"}}
	out, err := s.FindRelevant(context.Background(), "query", available, 0)
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestGuidelineToolAssociationsFindAllReturnsCopy(t *testing.T) {
	tid := model.ToolID{Service: "s", Name: "t"}
	s := NewGuidelineToolAssociations(map[string][]model.ToolID{"g1": {tid}})

	out, err := s.FindAll(context.Background())
	require.NoError(t, err)
	out["g1"][0] = model.ToolID{Service: "mutated"}

	out2, _ := s.FindAll(context.Background())
	assert.Equal(t, "s", out2["g1"][0].Service)
}

func TestJourneyNodeToolAssociationsFind(t *testing.T) {
	tid := model.ToolID{Service: "s", Name: "t"}
	s := NewJourneyNodeToolAssociations(map[string][]model.ToolID{"node1": {tid}})

	out, err := s.Find(context.Background(), "node1")
	require.NoError(t, err)
	assert.Equal(t, []model.ToolID{tid}, out)

	out, err = s.Find(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestCannedResponseStoreFindForContextReturnsAll(t *testing.T) {
	s := NewCannedResponseStore(
		model.CannedResponse{ID: "r1"},
		model.CannedResponse{ID: "r2"},
	)
	out, err := s.FindForContext(context.Background(), model.Agent{}, nil, nil)
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestCannedResponseStoreFindByTagFilters(t *testing.T) {
	s := NewCannedResponseStore(
		model.CannedResponse{ID: "r1", Tags: []string{"preamble"}},
		model.CannedResponse{ID: "r2", Tags: []string{"no_match"}},
	)
	out, err := s.FindByTag(context.Background(), "preamble")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "r1", out[0].ID)
}

func TestContextVariableStoreReadScopedByAgentAndCustomer(t *testing.T) {
	s := NewContextVariableStore(map[string][]model.ContextVariable{
		"a1/c1": {{Key: "plan", Value: "pro"}},
	})
	out, err := s.Read(context.Background(), "a1", "c1")
	require.NoError(t, err)
	require.Len(t, out, 1)

	out, err = s.Read(context.Background(), "a1", "c2")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestGlossaryStoreFindRelevantCapsAtMaxTerms(t *testing.T) {
	s := NewGlossaryStore(
		model.GlossaryTerm{Term: "a"},
		model.GlossaryTerm{Term: "b"},
		model.GlossaryTerm{Term: "c"},
	)
	out, err := s.FindRelevant(context.Background(), "query", 2)
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestCapabilityStoreFindScopedByAgent(t *testing.T) {
	s := NewCapabilityStore(map[string][]model.Capability{
		"a1": {{Name: "refunds"}},
	})
	out, err := s.Find(context.Background(), "a1")
	require.NoError(t, err)
	require.Len(t, out, 1)

	out, err = s.Find(context.Background(), "a2")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestToolRegistryRegisterLookupExecute(t *testing.T) {
	tid := model.ToolID{Service: "billing", Name: "refund"}
	tool := model.Tool{ID: tid}
	r := NewToolRegistry()
	r.Register(tool, func(_ context.Context, args map[string]any) (model.ToolResult, error) {
		return model.ToolResult{Data: args["order_id"]}, nil
	})

	got, ok := r.Lookup(context.Background(), tid)
	require.True(t, ok)
	assert.Equal(t, tid, got.ID)

	result, err := r.Execute(context.Background(), model.ToolCall{ToolID: tid, Arguments: map[string]any{"order_id": "o-1"}})
	require.NoError(t, err)
	assert.Equal(t, "o-1", result.Data)
	assert.Equal(t, tid, result.Call.ToolID)
}

func TestToolRegistryLookupMissingReturnsFalse(t *testing.T) {
	r := NewToolRegistry()
	_, ok := r.Lookup(context.Background(), model.ToolID{Service: "x", Name: "y"})
	assert.False(t, ok)
}

func TestToolRegistryExecuteMissingHandlerErrors(t *testing.T) {
	r := NewToolRegistry()
	_, err := r.Execute(context.Background(), model.ToolCall{ToolID: model.ToolID{Service: "x", Name: "y"}})
	assert.Error(t, err)
}
