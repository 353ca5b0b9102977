// Copyright 2022, Pulumi Corporation.  All rights reserved.

// The fanout package sends one operation to many targets under a deadline.
//
// In parallel mode every target is started at once and results are handled as
// they arrive. In sequential mode targets are visited in order, each with the
// time that is left, until one of them produces a satisfactory result.
//
// Results are always handled on the calling goroutine, so HandleResult may
// mutate caller state without locking. Results that arrive after the deadline
// are dropped.
package fanout

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// The smallest budget given to an element in sequential mode.
const MinBudget = time.Millisecond

// Operation describes what to do with each element of a fan-out.
type Operation[E, R any] struct {
	// Whether the operation applies to the element. A nil CanDo accepts every
	// element.
	CanDo func(elem E) bool
	// Start the operation. The context is canceled once the result is no
	// longer wanted.
	Start func(ctx context.Context, elem E) (R, error)
	// Handle a successful result. In sequential mode, returning true stops
	// the iteration. The value is ignored in parallel mode.
	HandleResult func(elem E, result R) bool
}

// Executor carries the clock and logger used by fan-outs.
type Executor struct {
	Clock  clockwork.Clock
	Logger *zap.SugaredLogger
}

// New returns an executor on the real clock. A nil logger discards output.
func New(logger *zap.SugaredLogger) *Executor {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Executor{
		Clock:  clockwork.NewRealClock(),
		Logger: logger,
	}
}

func (x *Executor) orDefault() *Executor {
	if x == nil {
		return New(nil)
	}
	if x.Clock == nil || x.Logger == nil {
		d := *x
		if d.Clock == nil {
			d.Clock = clockwork.NewRealClock()
		}
		if d.Logger == nil {
			d.Logger = zap.NewNop().Sugar()
		}
		return &d
	}
	return x
}

// Now reads the executor's clock.
func (x *Executor) Now() time.Time {
	return x.orDefault().Clock.Now()
}

type outcome[E, R any] struct {
	elem   E
	result R
	err    error
}

// InParallel starts op on every eligible element and handles results until
// all have completed or timeout has elapsed. Failed elements are logged and
// skipped.
func InParallel[E, R any](ctx context.Context, x *Executor, elems []E, op Operation[E, R], timeout time.Duration) {
	x = x.orDefault()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Buffered so that late senders never block after we return.
	results := make(chan outcome[E, R], len(elems))
	started := 0
	for _, e := range elems {
		if op.CanDo != nil && !op.CanDo(e) {
			continue
		}
		started++
		go func(e E) {
			r, err := start(ctx, e, op.Start)
			results <- outcome[E, R]{elem: e, result: r, err: err}
		}(e)
	}
	if started == 0 {
		return
	}

	deadline := x.Clock.After(timeout)
	for pending := started; pending > 0; pending-- {
		select {
		case o := <-results:
			if o.err != nil {
				x.Logger.Infof("Operation on %v failed: %v", o.elem, o.err)
				continue
			}
			op.HandleResult(o.elem, o.result)
		case <-deadline:
			x.Logger.Infof("%d of %d operations did not finish within %v", pending, started, timeout)
			return
		case <-ctx.Done():
			return
		}
	}
}

// InSequence visits eligible elements in order. Each gets the time remaining
// until the overall deadline, but never less than MinBudget. Iteration stops
// as soon as HandleResult returns true.
func InSequence[E, R any](ctx context.Context, x *Executor, elems []E, op Operation[E, R], timeout time.Duration) {
	x = x.orDefault()
	end := x.Clock.Now().Add(timeout)
	for _, e := range elems {
		if ctx.Err() != nil {
			return
		}
		if op.CanDo != nil && !op.CanDo(e) {
			continue
		}
		budget := Budget(end, x.Clock.Now())
		r, err := await(ctx, x, e, op.Start, budget)
		if err != nil {
			x.Logger.Infof("Operation on %v failed: %v", e, err)
			continue
		}
		if op.HandleResult(e, r) {
			return
		}
	}
}

// Budget is the time an element may take given the overall deadline end.
func Budget(end, now time.Time) time.Duration {
	if remaining := end.Sub(now); remaining > MinBudget {
		return remaining
	}
	return MinBudget
}

func await[E, R any](ctx context.Context, x *Executor, e E, f func(context.Context, E) (R, error), budget time.Duration) (R, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan outcome[E, R], 1)
	go func() {
		r, err := start(ctx, e, f)
		done <- outcome[E, R]{elem: e, result: r, err: err}
	}()
	select {
	case o := <-done:
		return o.result, o.err
	case <-x.Clock.After(budget):
		var zero R
		return zero, fmt.Errorf("timed out after %v", budget)
	case <-ctx.Done():
		var zero R
		return zero, ctx.Err()
	}
}

// start runs f, turning a panic into an error.
func start[E, R any](ctx context.Context, e E, f func(context.Context, E) (R, error)) (r R, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return f(ctx, e)
}
