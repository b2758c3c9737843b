// Package background runs fire-and-forget side effects whose failures are
// logged and never reported to the caller.
package background

import (
	"context"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap"
)

const defaultTaskTimeout = 30 * time.Second

// Runner spawns detached tasks and tracks them so shutdown can drain them.
type Runner struct {
	timeout time.Duration
	logger  *zap.Logger
	wg      conc.WaitGroup
}

// NewRunner creates a Runner. A non-positive timeout uses the default.
func NewRunner(timeout time.Duration, logger *zap.Logger) *Runner {
	if timeout <= 0 {
		timeout = defaultTaskTimeout
	}
	return &Runner{timeout: timeout, logger: logger}
}

// Go runs fn in its own goroutine with a context detached from any request.
func (r *Runner) Go(name string, fn func(ctx context.Context) error) {
	r.wg.Go(func() {
		var err error
		recovered := panics.Try(func() {
			ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
			defer cancel()
			err = fn(ctx)
		})
		if recovered != nil {
			r.logger.Error("Background task panicked", zap.String("task", name), zap.Any("panic", recovered.Value))
			return
		}
		if err != nil {
			r.logger.Warn("Background task failed", zap.String("task", name), zap.Error(err))
		}
	})
}

// Wait blocks until every spawned task has returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}
