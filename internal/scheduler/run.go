package scheduler

import (
	"context"
	"sync/atomic"
)

const (
	stateWaiting int32 = iota
	stateStarted
	stateAbandoned
)

type outcome[T any] struct {
	value T
	err   error
}

// Run submits fn and waits for its single outcome.
//
// While the call is still queued, cancelling ctx abandons it: the task is
// skipped when its turn comes and Run returns ctx.Err(). Once admitted the
// call runs to completion and Run waits for it; fn receives a context that
// is not cancelled with ctx.
func Run[T any](ctx context.Context, s *Scheduler, fn func(ctx context.Context) (T, error)) (T, error) {
	var state atomic.Int32
	done := make(chan outcome[T], 1)
	callCtx := context.WithoutCancel(ctx)

	s.Submit(func() {
		if !state.CompareAndSwap(stateWaiting, stateStarted) {
			return
		}
		v, err := fn(callCtx)
		done <- outcome[T]{value: v, err: err}
	})

	select {
	case o := <-done:
		return o.value, o.err
	case <-ctx.Done():
		if state.CompareAndSwap(stateWaiting, stateAbandoned) {
			var zero T
			return zero, ctx.Err()
		}
		o := <-done
		return o.value, o.err
	}
}
