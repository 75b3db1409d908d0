package event

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/parlant-engine/convengine/internal/correlation"
	"github.com/parlant-engine/convengine/internal/model"
)

// Buffer accumulates events in memory without persisting them. Nested
// sub-engines (e.g. a journey-step sub-evaluation that may be discarded)
// emit into a Buffer; the owner decides whether to Flush into a real
// Emitter or drop the buffer entirely.
type Buffer struct {
	mu     sync.Mutex
	events []model.Event
}

// NewBuffer returns an empty Buffer.
func NewBuffer() *Buffer { return &Buffer{} }

func (b *Buffer) append(kind model.EventKind, source model.EventSource, correlationID string, data map[string]any) model.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	ev := model.Event{
		ID:            uuid.NewString(),
		Offset:        len(b.events),
		Kind:          kind,
		Source:        source,
		CorrelationID: correlationID,
		CreatedAt:     time.Now().UTC(),
		Data:          data,
	}
	b.events = append(b.events, ev)
	return ev
}

// EmitMessage implements Emitter.
func (b *Buffer) EmitMessage(ctx context.Context, source model.EventSource, payload MessagePayload) (model.Event, error) {
	return b.append(model.EventKindMessage, source, correlation.From(ctx).String(), toData(payload)), nil
}

// EmitTool implements Emitter.
func (b *Buffer) EmitTool(ctx context.Context, payload ToolPayload) (model.Event, error) {
	return b.append(model.EventKindTool, model.SourceAIAgent, correlation.From(ctx).String(), toData(payload)), nil
}

// EmitStatus implements Emitter.
func (b *Buffer) EmitStatus(ctx context.Context, status StatusName, data map[string]any) (model.Event, error) {
	return b.append(model.EventKindStatus, model.SourceSystem, correlation.From(ctx).String(), toData(StatusPayload{Status: status, Data: data})), nil
}

// EmitCustom implements Emitter.
func (b *Buffer) EmitCustom(ctx context.Context, source model.EventSource, data map[string]any) (model.Event, error) {
	return b.append(model.EventKindCustom, source, correlation.From(ctx).String(), data), nil
}

// Events returns a snapshot of everything buffered so far.
func (b *Buffer) Events() []model.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]model.Event(nil), b.events...)
}

// Flush replays every buffered event into dst in order, assigning each a
// fresh, store-backed offset, and clears the buffer.
func (b *Buffer) Flush(ctx context.Context, dst Emitter) ([]model.Event, error) {
	b.mu.Lock()
	pending := append([]model.Event(nil), b.events...)
	b.events = nil
	b.mu.Unlock()

	out := make([]model.Event, 0, len(pending))
	for _, ev := range pending {
		var (
			flushed model.Event
			err     error
		)
		switch ev.Kind {
		case model.EventKindMessage:
			flushed, err = dst.EmitMessage(ctx, ev.Source, messagePayloadFromData(ev.Data))
		case model.EventKindTool:
			flushed, err = dst.EmitTool(ctx, toolPayloadFromData(ev.Data))
		case model.EventKindStatus:
			sp := statusPayloadFromData(ev.Data)
			flushed, err = dst.EmitStatus(ctx, sp.Status, sp.Data)
		default:
			flushed, err = dst.EmitCustom(ctx, ev.Source, ev.Data)
		}
		if err != nil {
			return out, err
		}
		out = append(out, flushed)
	}
	return out, nil
}

func messagePayloadFromData(data map[string]any) MessagePayload {
	p := MessagePayload{}
	if v, ok := data["message"].(string); ok {
		p.Message = v
	}
	if v, ok := data["participant"].(model.Participant); ok {
		p.Participant = v
	}
	if v, ok := data["draft"].(string); ok {
		p.Draft = v
	}
	if v, ok := data["canned_responses"].([]string); ok {
		p.CannedResponses = v
	}
	if v, ok := data["tags"].([]string); ok {
		p.Tags = v
	}
	return p
}

func toolPayloadFromData(data map[string]any) ToolPayload {
	if v, ok := data["tool_calls"].([]ToolCallPayload); ok {
		return ToolPayload{ToolCalls: v}
	}
	return ToolPayload{}
}

func statusPayloadFromData(data map[string]any) StatusPayload {
	p := StatusPayload{}
	if v, ok := data["status"].(StatusName); ok {
		p.Status = v
	}
	if v, ok := data["data"].(map[string]any); ok {
		p.Data = v
	}
	return p
}
