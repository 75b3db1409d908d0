package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoSucceedsOnFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(attempt int) error {
		calls++
		assert.Equal(t, 0, attempt)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesUpToMaxAttempts(t *testing.T) {
	orig := Backoff
	Backoff = []time.Duration{time.Millisecond, time.Millisecond, time.Millisecond}
	defer func() { Backoff = orig }()

	calls := 0
	err := Do(context.Background(), func(attempt int) error {
		calls++
		return errors.New("boom")
	})
	assert.Error(t, err)
	assert.Equal(t, MaxAttempts, calls)
}

func TestDoReturnsFirstSuccessAfterFailures(t *testing.T) {
	orig := Backoff
	Backoff = []time.Duration{time.Millisecond, time.Millisecond, time.Millisecond}
	defer func() { Backoff = orig }()

	calls := 0
	err := Do(context.Background(), func(attempt int) error {
		calls++
		if calls < 2 {
			return errors.New("boom")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestDoStopsImmediatelyOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, func(attempt int) error {
		calls++
		return nil
	})
	assert.Error(t, err)
	assert.Equal(t, 0, calls)
}

func TestDoAbortsBetweenAttemptsOnContextCancellation(t *testing.T) {
	orig := Backoff
	Backoff = []time.Duration{50 * time.Millisecond, 50 * time.Millisecond, 50 * time.Millisecond}
	defer func() { Backoff = orig }()

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, func(attempt int) error {
		calls++
		if calls == 1 {
			cancel()
		}
		return errors.New("boom")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}
