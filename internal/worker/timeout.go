package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/infinity-samurai/food-ai/internal/vision"
)

// callWithDeadline races fn against a wall-clock deadline. The call runs on
// its own goroutine; if the deadline elapses first, control returns to the
// pipeline immediately with vision.ErrTimeout and the call is abandoned.
// The child context is cancelled so a cooperative callee can stop, but a
// callee that ignores cancellation only holds its goroutine, never the
// pipeline. The result channel is buffered so an abandoned call can still
// finish and exit.
func callWithDeadline[T any](ctx context.Context, timeout time.Duration, label string, fn func(context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}

	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		value T
		err   error
	}
	ch := make(chan outcome, 1)

	go func() {
		v, err := fn(cctx)
		ch <- outcome{value: v, err: err}
	}()

	select {
	case out := <-ch:
		return out.value, out.err
	case <-cctx.Done():
		var zero T
		return zero, fmt.Errorf("%w: %s after %s", vision.ErrTimeout, label, timeout)
	}
}
