package engine

import (
	"context"

	"github.com/parlant-engine/convengine/internal/model"
)

// HookResult is the explicit Continue|Bail result variant spec.md §9 asks
// every engine hook to return in place of exceptions-as-control-flow.
type HookResult int

const (
	HookContinue HookResult = iota
	HookBail
)

// Hooks bundles every checkpoint the Processing Engine calls during one
// cycle (§4.1). Every field is optional; a nil hook always continues.
type Hooks struct {
	OnAcknowledging             func(ctx context.Context, lctx *model.LoadedContext) HookResult
	OnAcknowledged              func(ctx context.Context, lctx *model.LoadedContext) HookResult
	OnPreparing                 func(ctx context.Context, lctx *model.LoadedContext) HookResult
	OnPreparationIterationStart func(ctx context.Context, lctx *model.LoadedContext, iteration int) HookResult
	OnPreparationIterationEnd   func(ctx context.Context, lctx *model.LoadedContext, iteration int) HookResult
	OnGeneratingMessages        func(ctx context.Context, lctx *model.LoadedContext) HookResult
	OnMessageGenerated          func(ctx context.Context, chunk string) HookResult
	OnMessagesEmitted           func(ctx context.Context, lctx *model.LoadedContext)
}

func call(h func(ctx context.Context, lctx *model.LoadedContext) HookResult, ctx context.Context, lctx *model.LoadedContext) HookResult {
	if h == nil {
		return HookContinue
	}
	return h(ctx, lctx)
}
