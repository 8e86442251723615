package story

import (
	"context"
	"time"
)

type callResult[T any] struct {
	val T
	err error
}

// WithTimeout runs call and waits at most d for it to finish.
// On expiry it returns timeoutErr; the call's context is cancelled and any
// result it still produces is discarded. Collaborators that ignore the context
// keep running in the background but can never deliver a late value.
func WithTimeout[T any](ctx context.Context, d time.Duration, timeoutErr error, call func(context.Context) (T, error)) (T, error) {
	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Buffered so the call goroutine never blocks on a result nobody reads.
	done := make(chan callResult[T], 1)
	go func() {
		v, err := call(callCtx)
		done <- callResult[T]{val: v, err: err}
	}()

	timer := time.NewTimer(d)
	defer timer.Stop()

	var zero T
	select {
	case res := <-done:
		return res.val, res.err
	case <-timer.C:
		return zero, timeoutErr
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
