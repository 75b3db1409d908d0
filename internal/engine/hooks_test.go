package engine

import (
	"context"
	"testing"

	"github.com/parlant-engine/convengine/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestCallNilHookContinues(t *testing.T) {
	result := call(nil, context.Background(), &model.LoadedContext{})
	assert.Equal(t, HookContinue, result)
}

func TestCallInvokesHookAndReturnsItsResult(t *testing.T) {
	var received *model.LoadedContext
	hook := func(_ context.Context, lctx *model.LoadedContext) HookResult {
		received = lctx
		return HookBail
	}

	lctx := &model.LoadedContext{Session: model.Session{ID: "s1"}}
	result := call(hook, context.Background(), lctx)

	assert.Equal(t, HookBail, result)
	assert.Same(t, lctx, received)
}
