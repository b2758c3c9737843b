package background_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/tastycreative/genflow/internal/background"
)

func TestRunner_WaitDrainsTasks(t *testing.T) {
	r := background.NewRunner(time.Second, zap.NewNop())

	var ran atomic.Int32
	for i := 0; i < 3; i++ {
		r.Go("count", func(ctx context.Context) error {
			time.Sleep(10 * time.Millisecond)
			ran.Add(1)
			return nil
		})
	}
	r.Wait()

	if ran.Load() != 3 {
		t.Errorf("expected 3 tasks to run, got %d", ran.Load())
	}
}

// Test: errors and panics are contained inside the runner.
func TestRunner_ContainsFailures(t *testing.T) {
	r := background.NewRunner(time.Second, zap.NewNop())

	r.Go("error", func(ctx context.Context) error { return errors.New("s3 unavailable") })
	r.Go("panic", func(ctx context.Context) error { panic("boom") })
	r.Wait()
}

func TestRunner_ContextHasDeadline(t *testing.T) {
	r := background.NewRunner(50*time.Millisecond, zap.NewNop())

	var hadDeadline atomic.Bool
	r.Go("deadline", func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		hadDeadline.Store(ok)
		return nil
	})
	r.Wait()

	if !hadDeadline.Load() {
		t.Error("expected task context to carry a deadline")
	}
}
