package pool

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/tastycreative/genflow/internal/domain"
	"github.com/tastycreative/genflow/internal/metrics"
	"github.com/tastycreative/genflow/internal/usecase"
)

// WorkerPool manages a fixed-size pool of goroutines that process jobs.
type WorkerPool struct {
	size      int
	jobs      <-chan *domain.JobMessage
	processUC *usecase.ProcessGenerationUsecase
	logger    *zap.Logger
	wg        sync.WaitGroup
}

// NewWorkerPool creates a new fixed-size worker pool.
func NewWorkerPool(size int, jobs <-chan *domain.JobMessage, processUC *usecase.ProcessGenerationUsecase, logger *zap.Logger) *WorkerPool {
	if size < 1 {
		size = 1
	}
	return &WorkerPool{
		size:      size,
		jobs:      jobs,
		processUC: processUC,
		logger:    logger,
	}
}

// Start launches all worker goroutines. Call Stop to wait for them to finish.
func (p *WorkerPool) Start(ctx context.Context) {
	p.logger.Info("Starting worker pool", zap.Int("pool_size", p.size))

	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

// Stop waits for all workers to finish their current jobs and exit.
func (p *WorkerPool) Stop() {
	p.wg.Wait()
	p.logger.Info("Worker pool stopped")
}

func (p *WorkerPool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	p.logger.Debug("Worker started", zap.Int("worker_id", id))

	for {
		select {
		case <-ctx.Done():
			p.logger.Debug("Worker shutting down", zap.Int("worker_id", id))
			return
		case msg, ok := <-p.jobs:
			if !ok {
				p.logger.Debug("Job channel closed", zap.Int("worker_id", id))
				return
			}
			p.handle(ctx, id, msg)
		}
	}
}

// handle runs one job. A job already started is allowed to finish during
// shutdown; its own execution budget bounds it.
func (p *WorkerPool) handle(ctx context.Context, id int, msg *domain.JobMessage) {
	jobID := msg.JobID.String()

	metrics.WorkersActive.Inc()
	defer metrics.WorkersActive.Dec()

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Worker panic recovered",
				zap.Int("worker_id", id),
				zap.String("job_id", jobID),
				zap.Any("panic", r),
			)
			if nackErr := msg.Nack(false); nackErr != nil {
				p.logger.Error("Failed to NACK message", zap.String("job_id", jobID), zap.Error(nackErr))
			}
		}
	}()

	p.logger.Info("Worker processing job", zap.Int("worker_id", id), zap.String("job_id", jobID))

	isDuplicate, err := p.processUC.Execute(context.WithoutCancel(ctx), msg.JobID)
	if err != nil {
		p.logger.Error("Job processing failed",
			zap.Int("worker_id", id),
			zap.String("job_id", jobID),
			zap.Error(err),
		)
		// Nack without requeue; failed triggers go to the DLQ.
		if nackErr := msg.Nack(false); nackErr != nil {
			p.logger.Error("Failed to NACK message", zap.String("job_id", jobID), zap.Error(nackErr))
		}
		return
	}

	if isDuplicate {
		p.logger.Debug("Duplicate trigger skipped", zap.Int("worker_id", id), zap.String("job_id", jobID))
	}

	if ackErr := msg.Ack(); ackErr != nil {
		p.logger.Error("Failed to ACK message", zap.String("job_id", jobID), zap.Error(ackErr))
	}
}
