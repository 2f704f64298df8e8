package request

import (
	"context"
	"time"
)

// RaceTimeout runs fn under a derived context and races it against a fixed
// timer. Whichever finishes first wins and the loser's context is
// cancelled: a timer win maps to ErrRequestTimeout, cancellation of ctx to
// ErrRequestCancelled, and fn's own result passes through verbatim.
func RaceTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		val T
		err error
	}
	// Buffered so the losing goroutine's send never blocks.
	done := make(chan outcome, 1)
	go func() {
		v, err := fn(runCtx)
		done <- outcome{val: v, err: err}
	}()

	timer := time.NewTimer(d)
	defer timer.Stop()

	var zero T
	select {
	case out := <-done:
		return out.val, out.err
	case <-timer.C:
		cancel()
		return zero, ErrRequestTimeout
	case <-ctx.Done():
		cancel()
		return zero, ErrRequestCancelled
	}
}
