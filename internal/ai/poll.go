package ai

import (
	"context"
	"errors"
	"time"
)

// ErrPollExhausted is returned when the attempt budget runs out before the
// polled operation completes.
var ErrPollExhausted = errors.New("poll attempts exhausted")

// PollUntil calls fn once per interval until it reports done, the attempt
// budget is spent, or ctx is cancelled. A non-nil error from fn stops the
// loop immediately; callers that want to ride out transient errors report
// not-done instead.
func PollUntil[T any](ctx context.Context, interval time.Duration, maxAttempts int, fn func(ctx context.Context) (T, bool, error)) (T, error) {
	var zero T
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for attempt := 0; attempt < maxAttempts; attempt++ {
		v, done, err := fn(ctx)
		if err != nil {
			return zero, err
		}
		if done {
			return v, nil
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-ticker.C:
		}
	}
	return zero, ErrPollExhausted
}
