package event

import (
	"context"
	"testing"

	"github.com/parlant-engine/convengine/internal/correlation"
	"github.com/parlant-engine/convengine/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferAppendsWithIncreasingOffsets(t *testing.T) {
	buf := NewBuffer()
	ctx := correlation.With(context.Background(), correlation.NewRootWithID("r1"))

	_, err := buf.EmitMessage(ctx, model.SourceAIAgent, MessagePayload{Message: "hello"})
	require.NoError(t, err)
	_, err = buf.EmitStatus(ctx, StatusReady, nil)
	require.NoError(t, err)

	events := buf.Events()
	require.Len(t, events, 2)
	assert.Equal(t, 0, events[0].Offset)
	assert.Equal(t, 1, events[1].Offset)
	assert.Equal(t, "Rr1", events[0].CorrelationID)
}

func TestBufferEmitToolStoresCallPayload(t *testing.T) {
	buf := NewBuffer()
	ctx := context.Background()

	calls := []ToolCallPayload{{ToolID: "svc:tool", Arguments: map[string]any{"x": 1}}}
	_, err := buf.EmitTool(ctx, ToolPayload{ToolCalls: calls})
	require.NoError(t, err)

	events := buf.Events()
	require.Len(t, events, 1)
	assert.Equal(t, model.EventKindTool, events[0].Kind)
	assert.Equal(t, calls, events[0].Data["tool_calls"])
}

func TestBufferFlushReplaysIntoDestinationAndClears(t *testing.T) {
	src := NewBuffer()
	ctx := context.Background()

	_, _ = src.EmitMessage(ctx, model.SourceAIAgent, MessagePayload{Message: "m1"})
	_, _ = src.EmitStatus(ctx, StatusTyping, map[string]any{"words": 5})
	_, _ = src.EmitTool(ctx, ToolPayload{ToolCalls: []ToolCallPayload{{ToolID: "s:t"}}})

	dst := NewBuffer()
	flushed, err := src.Flush(ctx, dst)
	require.NoError(t, err)
	require.Len(t, flushed, 3)

	// Source is drained.
	assert.Empty(t, src.Events())

	// Destination received all three, re-offset from its own zero.
	dstEvents := dst.Events()
	require.Len(t, dstEvents, 3)
	assert.Equal(t, 0, dstEvents[0].Offset)
	assert.Equal(t, model.EventKindMessage, dstEvents[0].Kind)
	assert.Equal(t, "m1", dstEvents[0].Data["message"])
	assert.Equal(t, model.EventKindStatus, dstEvents[1].Kind)
	assert.Equal(t, StatusTyping, dstEvents[1].Data["status"])
	assert.Equal(t, model.EventKindTool, dstEvents[2].Kind)
}

func TestBufferFlushOnEmptyBufferIsNoop(t *testing.T) {
	buf := NewBuffer()
	dst := NewBuffer()

	flushed, err := buf.Flush(context.Background(), dst)

	require.NoError(t, err)
	assert.Empty(t, flushed)
	assert.Empty(t, dst.Events())
}
