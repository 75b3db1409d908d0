// Package ratelimit bounds concurrent LLM call fan-out issued by the
// Guideline Matcher's batch evaluation and the Tool Caller's per-tool
// inference (§5: "implementations may cap fan-out").
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter wraps golang.org/x/time/rate to gate concurrent LLM calls. Unlike
// a plain semaphore it also smooths bursts over time, which matters when a
// preparation iteration fans out many batches/tool inferences at once.
type Limiter struct {
	rl *rate.Limiter
}

// New returns a Limiter allowing burst concurrent calls and refilling at
// rate calls/second thereafter.
func New(callsPerSecond float64, burst int) *Limiter {
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{rl: rate.NewLimiter(rate.Limit(callsPerSecond), burst)}
}

// Unlimited returns a Limiter that never blocks, used when no cap is
// configured.
func Unlimited() *Limiter {
	return &Limiter{rl: rate.NewLimiter(rate.Inf, 1)}
}

// Wait blocks until a call slot is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil || l.rl == nil {
		return nil
	}
	return l.rl.Wait(ctx)
}
