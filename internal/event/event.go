// Package event defines the Event/Status Emitter (§4.5): the Emitter
// contract used by every engine stage to publish session events, and two
// implementations — Publisher (write-through to the session store) and
// Buffer (in-memory, flushed by its owner, used by nested sub-engines so
// their events can be discarded or merged atomically).
package event

import (
	"context"

	"github.com/parlant-engine/convengine/internal/model"
	"github.com/parlant-engine/convengine/internal/store"
)

// StatusName enumerates the taxonomy of status events (§4.5).
type StatusName string

const (
	StatusAcknowledged StatusName = "acknowledged"
	StatusProcessing   StatusName = "processing"
	StatusTyping       StatusName = "typing"
	StatusReady        StatusName = "ready"
	StatusCancelled    StatusName = "cancelled"
	StatusError        StatusName = "error"
)

// MessagePayload is the §6.4 wire shape for a Message event.
type MessagePayload struct {
	Message         string             `json:"message"`
	Participant     model.Participant  `json:"participant"`
	Draft           string             `json:"draft,omitempty"`
	CannedResponses []string           `json:"canned_responses,omitempty"`
	Tags            []string           `json:"tags,omitempty"`
}

// ToolCallPayload is one entry in a Tool event's tool_calls list (§6.4).
type ToolCallPayload struct {
	ToolID    string         `json:"tool_id"`
	Arguments map[string]any `json:"arguments"`
	Result    ToolResultWire `json:"result"`
}

// ToolResultWire is the §6.4 wire shape for a tool result.
type ToolResultWire struct {
	Data                 any               `json:"data"`
	CannedResponseFields map[string]string `json:"canned_response_fields,omitempty"`
	CannedResponses      []string          `json:"canned_responses,omitempty"`
}

// ToolPayload is the §6.4 wire shape for a Tool event.
type ToolPayload struct {
	ToolCalls []ToolCallPayload `json:"tool_calls"`
}

// StatusPayload is the §6.4 wire shape for a Status event.
type StatusPayload struct {
	Status StatusName     `json:"status"`
	Data   map[string]any `json:"data,omitempty"`
}

// Emitter is implemented by both Publisher and Buffer. Every engine stage
// emits events exclusively through this interface so that nested
// sub-engines can swap a Buffer in without any caller-side branching.
type Emitter interface {
	EmitMessage(ctx context.Context, source model.EventSource, payload MessagePayload) (model.Event, error)
	EmitTool(ctx context.Context, payload ToolPayload) (model.Event, error)
	EmitStatus(ctx context.Context, status StatusName, data map[string]any) (model.Event, error)
	EmitCustom(ctx context.Context, source model.EventSource, data map[string]any) (model.Event, error)
}

func toData(v any) map[string]any {
	switch t := v.(type) {
	case MessagePayload:
		return map[string]any{
			"message":          t.Message,
			"participant":      t.Participant,
			"draft":            t.Draft,
			"canned_responses": t.CannedResponses,
			"tags":             t.Tags,
		}
	case ToolPayload:
		return map[string]any{"tool_calls": t.ToolCalls}
	case StatusPayload:
		return map[string]any{"status": t.Status, "data": t.Data}
	default:
		return nil
	}
}
