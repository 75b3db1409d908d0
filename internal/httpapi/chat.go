package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/parlant-engine/convengine/internal/correlation"
	"github.com/parlant-engine/convengine/internal/event"
	"github.com/parlant-engine/convengine/internal/llm"
	"github.com/parlant-engine/convengine/internal/model"
)

// chatRequest is the §6.3 POST /sessions/chat_async payload. Fields beyond
// what the engine's semantics need (md5Checksum, isPreview,
// previewActionBookIDs, autofillParams) are accepted and otherwise ignored:
// they belong to the evaluation-manager administrative tooling the
// specification's Non-goals place out of scope.
type chatRequest struct {
	Message              string         `json:"message"`
	SessionID            string         `json:"session_id"`
	TenantID             string         `json:"tenant_id"`
	ChatbotID            string         `json:"chatbot_id"`
	CustomerID           string         `json:"customer_id"`
	SessionTitle         string         `json:"session_title"`
	MD5Checksum          string         `json:"md5_checksum"`
	IsPreview            bool           `json:"is_preview"`
	Timeout              int            `json:"timeout"`
	PreviewActionBookIDs []string       `json:"preview_action_book_ids"`
	AutofillParams       map[string]any `json:"autofill_params"`
}

type chatResponse struct {
	SessionID     string `json:"session_id"`
	CorrelationID string `json:"correlation_id"`
	Message       string `json:"message"`
	TotalTokens   int    `json:"total_tokens"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// recorder forwards every emission to an underlying Emitter while keeping
// the text of the most recent AI-agent message, so chat_async can return it
// synchronously once the cycle completes.
type recorder struct {
	event.Emitter
	lastMessage string
}

func (r *recorder) EmitMessage(ctx context.Context, source model.EventSource, payload event.MessagePayload) (model.Event, error) {
	ev, err := r.Emitter.EmitMessage(ctx, source, payload)
	if err == nil && source == model.SourceAIAgent {
		r.lastMessage = payload.Message
	}
	return ev, err
}

func (s *Server) handleChatAsync(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "invalid request body: " + err.Error()})
		return
	}
	if req.Message == "" || req.TenantID == "" || req.ChatbotID == "" {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "message, tenant_id, and chatbot_id are required"})
		return
	}

	customerID := req.CustomerID
	if customerID == "" {
		customerID = "anon:" + uuid.NewString()
	}

	ctx := r.Context()

	sessionID := req.SessionID
	if sessionID == "" {
		sess, err := s.deps.Sessions.CreateSession(ctx, req.ChatbotID, customerID, model.SessionModeAuto, req.SessionTitle)
		if err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "create session: " + err.Error()})
			return
		}
		sessionID = sess.ID
	}

	scope := correlation.NewRoot()
	ctx = correlation.With(ctx, scope)

	if _, err := s.deps.Sessions.CreateEvent(ctx, sessionID, model.EventKindMessage, model.SourceCustomer, scope.String(), map[string]any{
		"message":     req.Message,
		"participant": model.Participant{ID: customerID},
	}); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "record message: " + err.Error()})
		return
	}

	timeout := s.deps.DefaultTimeout
	if req.Timeout > 0 {
		timeout = time.Duration(req.Timeout) * time.Second
	}
	cycleCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tracker := llm.NewUsageTracker(s.deps.EngineDeps.Gen)
	eng := s.engineFor(tracker)
	rec := &recorder{Emitter: event.NewPublisher(s.deps.Sessions, sessionID, s.deps.Logger)}

	done := make(chan struct{})
	s.deps.Tasks.Dispatch(cycleCtx, sessionID, func(taskCtx context.Context) {
		defer close(done)
		eng.Process(taskCtx, sessionID, req.ChatbotID, rec)
	})

	select {
	case <-done:
		writeJSON(w, http.StatusOK, chatResponse{
			SessionID:     sessionID,
			CorrelationID: scope.String(),
			Message:       rec.lastMessage,
			TotalTokens:   tracker.Total(),
		})
	case <-cycleCtx.Done():
		writeJSON(w, http.StatusGatewayTimeout, errorResponse{Error: "processing timed out"})
	}
}
