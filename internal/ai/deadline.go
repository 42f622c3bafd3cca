package ai

import (
	"context"
	"time"
)

// WithDeadline runs call and returns its result unless timeout elapses first,
// in which case it returns ErrTimeout. The losing call keeps running until ctx
// is done; its result is dropped.
func WithDeadline[T any](ctx context.Context, timeout time.Duration, call func(context.Context) (T, error)) (T, error) {
	type result struct {
		value T
		err   error
	}

	done := make(chan result, 1) // buffered so a late call never blocks
	go func() {
		v, err := call(ctx)
		done <- result{value: v, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var zero T
	select {
	case r := <-done:
		return r.value, r.err
	case <-timer.C:
		return zero, ErrTimeout
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
