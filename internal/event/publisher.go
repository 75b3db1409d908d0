package event

import (
	"context"

	"github.com/parlant-engine/convengine/internal/correlation"
	"github.com/parlant-engine/convengine/internal/model"
	"github.com/parlant-engine/convengine/internal/store"
	"github.com/parlant-engine/convengine/internal/telemetry"
)

// Publisher writes events through to the session store, returning the
// persisted (offset-assigned) Event. It is the Emitter used on the main
// processing-cycle path.
type Publisher struct {
	Sessions  store.SessionStore
	SessionID string
	Logger    telemetry.Logger
}

// NewPublisher constructs a Publisher bound to one session.
func NewPublisher(sessions store.SessionStore, sessionID string, logger telemetry.Logger) *Publisher {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return &Publisher{Sessions: sessions, SessionID: sessionID, Logger: logger}
}

func (p *Publisher) emit(ctx context.Context, kind model.EventKind, source model.EventSource, data map[string]any) (model.Event, error) {
	scope := correlation.From(ctx)
	ev, err := p.Sessions.CreateEvent(ctx, p.SessionID, kind, source, scope.String(), data)
	if err != nil {
		p.Logger.Error(ctx, "emit failed", "session_id", p.SessionID, "kind", string(kind), "correlation_id", scope.String(), "err", err.Error())
		return model.Event{}, err
	}
	p.Logger.Debug(ctx, "emitted event", "session_id", p.SessionID, "kind", string(kind), "offset", ev.Offset, "correlation_id", scope.String())
	return ev, nil
}

// EmitMessage implements Emitter.
func (p *Publisher) EmitMessage(ctx context.Context, source model.EventSource, payload MessagePayload) (model.Event, error) {
	return p.emit(ctx, model.EventKindMessage, source, toData(payload))
}

// EmitTool implements Emitter.
func (p *Publisher) EmitTool(ctx context.Context, payload ToolPayload) (model.Event, error) {
	return p.emit(ctx, model.EventKindTool, model.SourceAIAgent, toData(payload))
}

// EmitStatus implements Emitter.
func (p *Publisher) EmitStatus(ctx context.Context, status StatusName, data map[string]any) (model.Event, error) {
	return p.emit(ctx, model.EventKindStatus, model.SourceSystem, toData(StatusPayload{Status: status, Data: data}))
}

// EmitCustom implements Emitter.
func (p *Publisher) EmitCustom(ctx context.Context, source model.EventSource, data map[string]any) (model.Event, error) {
	return p.emit(ctx, model.EventKindCustom, source, data)
}
