// Package retry implements the bounded retry policy used by guideline-match
// batches, tool inferences, and tool executions (§5). Message generation in
// internal/compose does not go through this package.
// Backoff constants are an implementation choice per spec.md §9 open
// question 1: the source corpus does not specify exact values.
package retry

import (
	"context"
	"time"
)

// Backoff is the delay schedule applied between attempts 1→2, 2→3, and so
// on. The spec's suggested defaults (200ms, 600ms, 1.4s) are used; any
// attempt beyond the schedule reuses the last value.
var Backoff = []time.Duration{200 * time.Millisecond, 600 * time.Millisecond, 1400 * time.Millisecond}

// MaxAttempts is the number of attempts (not retries) every retryable
// operation gets, per §4.2/§4.3/§4.4/§5 ("retry up to 3").
const MaxAttempts = 3

// Do runs fn up to MaxAttempts times, sleeping per Backoff between
// attempts, and returns the first success. A context cancellation aborts
// immediately without consuming further attempts.
func Do(ctx context.Context, fn func(attempt int) error) error {
	var lastErr error
	for attempt := 0; attempt < MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn(attempt)
		if lastErr == nil {
			return nil
		}
		if attempt < MaxAttempts-1 {
			delay := Backoff[len(Backoff)-1]
			if attempt < len(Backoff) {
				delay = Backoff[attempt]
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return lastErr
}
