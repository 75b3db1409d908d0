package engine

import "context"

// Latch implements the cancellation-suppression latch from §5/§9: while
// entered, the context handed to the protected block ignores cancellation
// from its parent, so a customer follow-up that supersedes this cycle
// cannot leave the user watching a typing indicator with no reply. The
// caller's own ctx is otherwise left untouched; the suppression applies
// only to the block run under Guard.
type Latch struct{}

// Guard runs fn with cancellation from ctx deferred until fn returns. It
// does not create a new cancellation source: fn still respects an explicit
// deadline set on ctx, only the parent's Cancel/Done signal is withheld.
func (Latch) Guard(ctx context.Context, fn func(ctx context.Context) error) error {
	inner := context.WithoutCancel(ctx)
	if deadline, ok := ctx.Deadline(); ok {
		var cancel context.CancelFunc
		inner, cancel = context.WithDeadline(inner, deadline)
		defer cancel()
	}
	return fn(inner)
}
