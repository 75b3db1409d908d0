// Package httpapi is the thin HTTP wire adapter described in §6.3: it
// decodes chat_async requests, dispatches one processing cycle per request
// through internal/task, and serves the long-polling event feed. No
// business logic lives here — everything beyond request/response shaping
// belongs to internal/engine.
package httpapi

import (
	"net/http"
	"time"

	"github.com/parlant-engine/convengine/internal/engine"
	"github.com/parlant-engine/convengine/internal/llm"
	"github.com/parlant-engine/convengine/internal/store"
	"github.com/parlant-engine/convengine/internal/task"
	"github.com/parlant-engine/convengine/internal/telemetry"
)

// Dependencies bundles what the HTTP layer needs to turn a request into a
// dispatched processing cycle.
type Dependencies struct {
	Sessions store.SessionStore
	Tasks    *task.Service
	// EngineDeps seeds a fresh *engine.Engine per request; Gen is replaced
	// with a per-request llm.UsageTracker so each response can report its
	// own total_tokens without cross-request interference.
	EngineDeps engine.Dependencies
	Logger     telemetry.Logger
	// DefaultTimeout bounds a request when the client omits "timeout".
	DefaultTimeout time.Duration
	// PollInterval is how often the events endpoint re-checks the store
	// while long-polling.
	PollInterval time.Duration
}

func (d Dependencies) withDefaults() Dependencies {
	if d.Logger == nil {
		d.Logger = telemetry.NewNoopLogger()
	}
	if d.DefaultTimeout <= 0 {
		d.DefaultTimeout = 30 * time.Second
	}
	if d.PollInterval <= 0 {
		d.PollInterval = 250 * time.Millisecond
	}
	return d
}

// Server serves the two endpoints named in §6.3.
type Server struct {
	deps Dependencies
}

// New constructs a Server.
func New(deps Dependencies) *Server {
	return &Server{deps: deps.withDefaults()}
}

// Routes returns the ServeMux wiring both endpoints. Mounting it is the
// caller's (cmd/engine's) responsibility.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /sessions/chat_async", s.handleChatAsync)
	mux.HandleFunc("GET /sessions/{id}/events", s.handleEvents)
	return mux
}

// engineFor builds a per-request Engine whose generator tracks this
// request's token usage in isolation.
func (s *Server) engineFor(tracker *llm.UsageTracker) *engine.Engine {
	deps := s.deps.EngineDeps
	deps.Gen = tracker
	return engine.New(deps)
}
