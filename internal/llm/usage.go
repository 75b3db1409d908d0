package llm

import (
	"context"
	"sync/atomic"
)

// UsageTracker wraps a Generator and accumulates token usage across every
// call made through it, scoped to one request by constructing a fresh
// tracker per call site (e.g. one per chat_async request, per §6.3's
// total_tokens response field).
type UsageTracker struct {
	inner Generator
	total int64
}

// NewUsageTracker wraps inner in a fresh, zeroed tracker.
func NewUsageTracker(inner Generator) *UsageTracker {
	return &UsageTracker{inner: inner}
}

// Generate implements Generator, delegating to inner and recording usage.
func (t *UsageTracker) Generate(ctx context.Context, prompt string, schema map[string]any, into any, hints Hints) (Usage, error) {
	usage, err := t.inner.Generate(ctx, prompt, schema, into, hints)
	atomic.AddInt64(&t.total, int64(usage.PromptTokens+usage.CompletionTokens))
	return usage, err
}

// Total returns the cumulative prompt+completion token count seen so far.
func (t *UsageTracker) Total() int {
	return int(atomic.LoadInt64(&t.total))
}
