// Package fanout runs independent branches concurrently and reports each
// branch as a tagged outcome instead of failing the whole batch.
package fanout

import (
	"context"
	"fmt"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
)

// Outcome is the tagged result of one branch: either Value or Err is meaningful.
type Outcome[T any] struct {
	Index int
	Value T
	Err   error
}

// OK reports whether the branch succeeded.
func (o Outcome[T]) OK() bool {
	return o.Err == nil
}

// Run starts n branches at once and waits for all of them. Concurrency is
// unbounded. A branch that returns an error or panics only fails itself.
//
// If timeout is positive each branch gets its own deadline, and Run stops
// waiting for a branch once that deadline passes even if fn ignores ctx; the
// abandoned branch's late result is dropped. With no timeout Run always waits
// for fn to return, so an outcome never hides work the branch committed.
func Run[T any](ctx context.Context, n int, timeout time.Duration, fn func(ctx context.Context, index int) (T, error)) []Outcome[T] {
	outcomes := make([]Outcome[T], n)

	var wg conc.WaitGroup
	for i := 0; i < n; i++ {
		wg.Go(func() {
			if timeout > 0 {
				outcomes[i] = runBounded(ctx, i, timeout, fn)
				return
			}
			outcomes[i] = call(ctx, i, fn)
		})
	}
	wg.Wait()

	return outcomes
}

func call[T any](ctx context.Context, index int, fn func(ctx context.Context, index int) (T, error)) Outcome[T] {
	out := Outcome[T]{Index: index}
	if r := panics.Try(func() { out.Value, out.Err = fn(ctx, index) }); r != nil {
		out.Err = fmt.Errorf("branch %d panicked: %w", index, r.AsError())
	}
	return out
}

func runBounded[T any](ctx context.Context, index int, timeout time.Duration, fn func(ctx context.Context, index int) (T, error)) Outcome[T] {
	branchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Buffered so an abandoned branch can still finish and exit.
	done := make(chan Outcome[T], 1)
	go func() {
		done <- call(branchCtx, index, fn)
	}()

	select {
	case out := <-done:
		return out
	case <-branchCtx.Done():
		return Outcome[T]{Index: index, Err: fmt.Errorf("branch %d: %w", index, branchCtx.Err())}
	}
}

// Successes returns the succeeded outcomes, in no particular order guarantee
// beyond their Index field.
func Successes[T any](outcomes []Outcome[T]) []Outcome[T] {
	ok := make([]Outcome[T], 0, len(outcomes))
	for _, o := range outcomes {
		if o.OK() {
			ok = append(ok, o)
		}
	}
	return ok
}

// Failures returns the failed outcomes.
func Failures[T any](outcomes []Outcome[T]) []Outcome[T] {
	var failed []Outcome[T]
	for _, o := range outcomes {
		if !o.OK() {
			failed = append(failed, o)
		}
	}
	return failed
}

// Count tallies succeeded and failed branches.
func Count[T any](outcomes []Outcome[T]) (succeeded, failed int) {
	for _, o := range outcomes {
		if o.OK() {
			succeeded++
		} else {
			failed++
		}
	}
	return succeeded, failed
}
