package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/parlant-engine/convengine/internal/engine"
	"github.com/parlant-engine/convengine/internal/llm"
	"github.com/parlant-engine/convengine/internal/model"
	"github.com/parlant-engine/convengine/internal/store"
	"github.com/parlant-engine/convengine/internal/store/inmem"
	"github.com/parlant-engine/convengine/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// slowSessionStore delays Read by delay, ignoring ctx, to simulate a
// dependency that outlives the request's deadline.
type slowSessionStore struct {
	*inmem.SessionStore
	delay time.Duration
}

func (s *slowSessionStore) Read(ctx context.Context, sessionID string) (model.Session, error) {
	time.Sleep(s.delay)
	return s.SessionStore.Read(ctx, sessionID)
}

// fakeChatGenerator answers any structured Generate call the engine makes
// during a Fluid-mode cycle (draft composition, preamble exemplar, title)
// with a fixed, schema-compatible blob.
type fakeChatGenerator struct{}

func (fakeChatGenerator) Generate(_ context.Context, _ string, _ map[string]any, into any, _ llm.Hints) (llm.Usage, error) {
	blob := []byte(`{"message":"Thanks for reaching out. How can I help?","title":"Support chat"}`)
	if err := json.Unmarshal(blob, into); err != nil {
		return llm.Usage{}, err
	}
	return llm.Usage{PromptTokens: 3, CompletionTokens: 4}, nil
}

func noSleep(context.Context, time.Duration) {}

func newTestServer(sessions store.SessionStore, agents *inmem.AgentStore) *Server {
	return New(Dependencies{
		Sessions: sessions,
		Tasks:    task.New(),
		EngineDeps: engine.Dependencies{
			Sessions: sessions,
			Agents:   agents,
		},
		DefaultTimeout: 2 * time.Second,
	})
}

func TestHandleChatAsyncReusesProvidedSessionID(t *testing.T) {
	agents := inmem.NewAgentStore(model.Agent{ID: "agent-1"})
	sessions := inmem.NewSessionStore()
	existing, err := sessions.CreateSession(context.Background(), "agent-1", "cust-1", model.SessionModeManual, "")
	require.NoError(t, err)
	s := newTestServer(sessions, agents)

	body, _ := json.Marshal(chatRequest{
		Message:   "hi again",
		TenantID:  "tenant-1",
		ChatbotID: "agent-1",
		SessionID: existing.ID,
	})
	req := httptest.NewRequest("POST", "/sessions/chat_async", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	s.Routes().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	var resp chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, existing.ID, resp.SessionID)
	assert.NotEmpty(t, resp.CorrelationID)

	events, err := sessions.ListEventsSince(context.Background(), existing.ID, 0, store.EventFilter{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.SourceCustomer, events[0].Source)
}

func TestHandleChatAsyncMissingRequiredFieldReturns422(t *testing.T) {
	agents := inmem.NewAgentStore()
	sessions := inmem.NewSessionStore()
	s := newTestServer(sessions, agents)

	body, _ := json.Marshal(chatRequest{Message: "hello"})
	req := httptest.NewRequest("POST", "/sessions/chat_async", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	s.Routes().ServeHTTP(rec, req)

	assert.Equal(t, 422, rec.Code)
	var errResp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.NotEmpty(t, errResp.Error)
}

func TestHandleChatAsyncMalformedBodyReturns422(t *testing.T) {
	agents := inmem.NewAgentStore()
	sessions := inmem.NewSessionStore()
	s := newTestServer(sessions, agents)

	req := httptest.NewRequest("POST", "/sessions/chat_async", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()

	s.Routes().ServeHTTP(rec, req)

	assert.Equal(t, 422, rec.Code)
}

func TestHandleChatAsyncUnknownAgentStillRespondsOKWithEmptyMessage(t *testing.T) {
	agents := inmem.NewAgentStore()
	sessions := inmem.NewSessionStore()
	s := newTestServer(sessions, agents)

	body, _ := json.Marshal(chatRequest{
		Message:   "hello",
		TenantID:  "tenant-1",
		ChatbotID: "does-not-exist",
	})
	req := httptest.NewRequest("POST", "/sessions/chat_async", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	s.Routes().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	var resp chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Message)
}

func TestHandleChatAsyncTimesOutReturns504(t *testing.T) {
	agents := inmem.NewAgentStore(model.Agent{ID: "agent-1"})
	base := inmem.NewSessionStore()
	sessions := &slowSessionStore{SessionStore: base, delay: 200 * time.Millisecond}

	s := New(Dependencies{
		Sessions: sessions,
		Tasks:    task.New(),
		EngineDeps: engine.Dependencies{
			Sessions: sessions,
			Agents:   agents,
		},
		DefaultTimeout: 20 * time.Millisecond,
	})

	body, _ := json.Marshal(chatRequest{
		Message:   "hello",
		TenantID:  "tenant-1",
		ChatbotID: "agent-1",
	})
	req := httptest.NewRequest("POST", "/sessions/chat_async", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	s.Routes().ServeHTTP(rec, req)

	assert.Equal(t, 504, rec.Code)
	var errResp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.NotEmpty(t, errResp.Error)
}

// TestHandleChatAsyncAutoCreatesSessionAndRunsFullCycle exercises the
// server's complete wiring: no session_id or customer_id supplied, a fresh
// Auto-mode session created on the caller's behalf, and a full engine cycle
// (guideline matching finds nothing, Fluid composition drafts a reply)
// running to completion.
func TestHandleChatAsyncAutoCreatesSessionAndRunsFullCycle(t *testing.T) {
	agents := inmem.NewAgentStore(model.Agent{ID: "agent-1", Name: "Ada", Composition: model.CompositionFluid})
	sessions := inmem.NewSessionStore()

	s := New(Dependencies{
		Sessions: sessions,
		Tasks:    task.New(),
		EngineDeps: engine.Dependencies{
			Sessions:                    sessions,
			Agents:                      agents,
			Customers:                   inmem.NewCustomerStore(),
			Guidelines:                  inmem.NewGuidelineStore(),
			Journeys:                    inmem.NewJourneyStore(),
			GuidelineToolAssociations:   inmem.NewGuidelineToolAssociations(nil),
			JourneyNodeToolAssociations: inmem.NewJourneyNodeToolAssociations(nil),
			CannedResponses:             inmem.NewCannedResponseStore(),
			ContextVariables:            inmem.NewContextVariableStore(nil),
			Glossary:                    inmem.NewGlossaryStore(),
			Capabilities:                inmem.NewCapabilityStore(nil),
			Gen:                         fakeChatGenerator{},
			Sleep:                       noSleep,
		},
		DefaultTimeout: 5 * time.Second,
	})

	body, _ := json.Marshal(chatRequest{
		Message:   "hello there",
		TenantID:  "tenant-1",
		ChatbotID: "agent-1",
	})
	req := httptest.NewRequest("POST", "/sessions/chat_async", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	s.Routes().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	var resp chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.SessionID)
	assert.NotEmpty(t, resp.CorrelationID)
	assert.Equal(t, "Thanks for reaching out. How can I help?", resp.Message)
	// The draft composition and the preamble exemplar generation both run
	// synchronously within the cycle; post-processing's title generation
	// races with the response being written, so only a floor is asserted.
	assert.GreaterOrEqual(t, resp.TotalTokens, 14)

	sess, err := sessions.Read(context.Background(), resp.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "agent-1", sess.AgentID)
	assert.Contains(t, sess.CustomerID, "anon:")
}
