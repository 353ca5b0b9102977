// Copyright 2022, Pulumi Corporation.  All rights reserved.

package fanout

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestInParallelAggregates(t *testing.T) {
	t.Parallel()

	x := New(zaptest.NewLogger(t).Sugar())
	var sum int
	InParallel(context.Background(), x, []int{1, 2, 3, 4, 5, 6}, Operation[int, int]{
		CanDo: func(i int) bool { return i%2 == 0 },
		Start: func(_ context.Context, i int) (int, error) {
			switch i {
			case 4:
				return 0, errors.New("no result")
			case 6:
				panic("crashed")
			}
			return i * 10, nil
		},
		HandleResult: func(_ int, r int) bool {
			sum += r
			return false
		},
	}, time.Second)

	assert.Equal(t, 20, sum)
}

func TestInParallelDeadline(t *testing.T) {
	t.Parallel()

	x := New(zaptest.NewLogger(t).Sugar())
	var handled atomic.Int32
	begin := time.Now()
	InParallel(context.Background(), x, []string{"slow", "fast"}, Operation[string, string]{
		Start: func(ctx context.Context, s string) (string, error) {
			if s == "slow" {
				// Ignore cancellation, like a server that keeps working.
				time.Sleep(300 * time.Millisecond)
			}
			return s, nil
		},
		HandleResult: func(e string, _ string) bool {
			assert.Equal(t, "fast", e)
			handled.Add(1)
			return false
		},
	}, 100*time.Millisecond)

	assert.Less(t, time.Since(begin), 250*time.Millisecond)
	// The late result is dropped.
	time.Sleep(400 * time.Millisecond)
	assert.Equal(t, int32(1), handled.Load())
}

func TestInSequenceShortCircuits(t *testing.T) {
	t.Parallel()

	x := New(zaptest.NewLogger(t).Sugar())
	var started []string
	var result string
	InSequence(context.Background(), x, []string{"s1", "s2", "s3"}, Operation[string, string]{
		Start: func(_ context.Context, s string) (string, error) {
			started = append(started, s)
			if s == "s1" {
				return "", nil
			}
			return "from " + s, nil
		},
		HandleResult: func(_ string, r string) bool {
			if r == "" {
				return false
			}
			result = r
			return true
		},
	}, time.Second)

	assert.Equal(t, []string{"s1", "s2"}, started)
	assert.Equal(t, "from s2", result)
}

func TestInSequenceSkipsFailures(t *testing.T) {
	t.Parallel()

	x := New(zaptest.NewLogger(t).Sugar())
	var result string
	InSequence(context.Background(), x, []string{"err", "cannot", "ok"}, Operation[string, string]{
		CanDo: func(s string) bool { return s != "cannot" },
		Start: func(_ context.Context, s string) (string, error) {
			if s == "err" {
				return "", errors.New("failed")
			}
			if s == "cannot" {
				panic("should not start")
			}
			return s, nil
		},
		HandleResult: func(_ string, r string) bool {
			result = r
			return true
		},
	}, time.Second)

	assert.Equal(t, "ok", result)
}

func TestInSequenceShrinksBudget(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	x := &Executor{Clock: clock, Logger: zaptest.NewLogger(t).Sugar()}

	var canceled atomic.Bool
	var result string
	done := make(chan struct{})
	go func() {
		defer close(done)
		InSequence(context.Background(), x, []string{"hang", "ok"}, Operation[string, string]{
			Start: func(ctx context.Context, s string) (string, error) {
				if s == "hang" {
					<-ctx.Done()
					canceled.Store(true)
					return "", ctx.Err()
				}
				return s, nil
			},
			HandleResult: func(_ string, r string) bool {
				result = r
				return true
			},
		}, 5*time.Second)
	}()

	clock.BlockUntil(1)
	clock.Advance(6 * time.Second)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		require.FailNow(t, "sequence did not finish")
	}
	assert.Equal(t, "ok", result)
	assert.Eventually(t, canceled.Load, time.Second, 10*time.Millisecond)
}

func TestBudget(t *testing.T) {
	t.Parallel()

	now := time.Now()
	assert.Equal(t, 3*time.Second, Budget(now.Add(3*time.Second), now))
	assert.Equal(t, MinBudget, Budget(now, now))
	assert.Equal(t, MinBudget, Budget(now.Add(-time.Second), now))
}
