package fanout_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tastycreative/genflow/internal/fanout"
)

func TestRun_AllSucceed(t *testing.T) {
	outcomes := fanout.Run(context.Background(), 3, 0, func(ctx context.Context, i int) (int, error) {
		return i * 10, nil
	})

	if len(outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(outcomes))
	}
	for _, o := range outcomes {
		if !o.OK() {
			t.Errorf("branch %d failed: %v", o.Index, o.Err)
		}
		if o.Value != o.Index*10 {
			t.Errorf("branch %d: expected value %d, got %d", o.Index, o.Index*10, o.Value)
		}
	}
}

// Test: one failing branch does not affect the others.
func TestRun_FailureIsolation(t *testing.T) {
	outcomes := fanout.Run(context.Background(), 4, 0, func(ctx context.Context, i int) (string, error) {
		if i == 2 {
			return "", errors.New("upstream 500")
		}
		return "ok", nil
	})

	succeeded, failed := fanout.Count(outcomes)
	if succeeded != 3 || failed != 1 {
		t.Fatalf("expected 3/1, got %d/%d", succeeded, failed)
	}
	failures := fanout.Failures(outcomes)
	if failures[0].Index != 2 {
		t.Errorf("expected branch 2 to fail, got %d", failures[0].Index)
	}
}

// Test: a panicking branch becomes a failure instead of crashing the batch.
func TestRun_PanicBecomesFailure(t *testing.T) {
	outcomes := fanout.Run(context.Background(), 2, 0, func(ctx context.Context, i int) (int, error) {
		if i == 0 {
			panic("boom")
		}
		return 1, nil
	})

	if outcomes[0].OK() {
		t.Fatal("expected branch 0 to fail")
	}
	if !outcomes[1].OK() {
		t.Fatalf("expected branch 1 to succeed, got %v", outcomes[1].Err)
	}
}

// Test: a branch that ignores its context does not hold up Run past the timeout.
func TestRun_TimeoutBoundsLatency(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	start := time.Now()
	outcomes := fanout.Run(context.Background(), 3, 100*time.Millisecond, func(ctx context.Context, i int) (int, error) {
		if i == 1 {
			<-release
		}
		return i, nil
	})
	elapsed := time.Since(start)

	if elapsed > time.Second {
		t.Fatalf("Run took %v, expected it bounded by the branch timeout", elapsed)
	}
	if !errors.Is(outcomes[1].Err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded for branch 1, got %v", outcomes[1].Err)
	}
	if len(fanout.Successes(outcomes)) != 2 {
		t.Errorf("expected 2 successes, got %d", len(fanout.Successes(outcomes)))
	}
}

// Test: without a timeout, a cancelled parent does not discard a branch that
// finishes its work anyway.
func TestRun_NoTimeoutWaitsForBranch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var committed atomic.Int32

	outcomes := fanout.Run(ctx, 2, 0, func(ctx context.Context, i int) (int, error) {
		if i == 0 {
			cancel()
		}
		time.Sleep(50 * time.Millisecond)
		committed.Add(1)
		return i, nil
	})

	if committed.Load() != 2 {
		t.Fatalf("expected both branches to finish, got %d", committed.Load())
	}
	if succeeded, _ := fanout.Count(outcomes); succeeded != 2 {
		t.Errorf("expected every committed branch reported as success, got %d", succeeded)
	}
}

// Test: branches really run concurrently.
func TestRun_Concurrent(t *testing.T) {
	var inFlight, peak atomic.Int32
	fanout.Run(context.Background(), 5, 0, func(ctx context.Context, i int) (int, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(50 * time.Millisecond)
		inFlight.Add(-1)
		return i, nil
	})

	if peak.Load() < 2 {
		t.Errorf("expected concurrent branches, peak in-flight was %d", peak.Load())
	}
}

func TestRun_Zero(t *testing.T) {
	outcomes := fanout.Run(context.Background(), 0, 0, func(ctx context.Context, i int) (int, error) {
		t.Fatal("fn should not be called")
		return 0, nil
	})
	if len(outcomes) != 0 {
		t.Fatalf("expected no outcomes, got %d", len(outcomes))
	}
}
