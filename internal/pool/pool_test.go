package pool_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tastycreative/genflow/internal/background"
	"github.com/tastycreative/genflow/internal/domain"
	"github.com/tastycreative/genflow/internal/pool"
	"github.com/tastycreative/genflow/internal/repository/mock"
	"github.com/tastycreative/genflow/internal/usecase"
)

type poolFixture struct {
	jobs  *mock.JobRepository
	store *mock.ObjectStore
	idem  *mock.IdempotencyStore
}

func newFixture() *poolFixture {
	return &poolFixture{
		jobs:  mock.NewJobRepository(),
		store: mock.NewObjectStore(nil),
		idem:  &mock.IdempotencyStore{},
	}
}

func (f *poolFixture) start(t *testing.T, poolSize int) (chan *domain.JobMessage, *pool.WorkerPool, context.CancelFunc) {
	t.Helper()

	logger := zap.NewNop()
	uc := usecase.NewProcessGenerationUsecase(usecase.ProcessGenerationDeps{
		Jobs:        f.jobs,
		Artifacts:   &mock.ArtifactRepository{},
		Folders:     &mock.FolderRepository{},
		Idempotency: f.idem,
		Store:       f.store,
		Synthesizer: &mock.Synthesizer{},
		Notifier:    &mock.Notifier{},
		Runner:      background.NewRunner(time.Second, logger),
	}, logger)

	ch := make(chan *domain.JobMessage, 16)
	ctx, cancel := context.WithCancel(context.Background())
	wp := pool.NewWorkerPool(poolSize, ch, uc, logger)
	wp.Start(ctx)

	return ch, wp, cancel
}

func (f *poolFixture) newJob() uuid.UUID {
	key := "temp/user_1/" + uuid.NewString() + "/ref.png"
	_ = f.store.Put(context.Background(), key, mock.PNG, "image/png")
	job := &domain.Job{
		ID:     uuid.New(),
		UserID: "user_1",
		Status: domain.StatusPending,
		Params: domain.GenerationParams{Prompt: "p", Count: 1, ReferenceImageKeys: []string{key}},
	}
	f.jobs.Put(job)
	return job.ID
}

func sendJob(ch chan<- *domain.JobMessage, jobID uuid.UUID, acked *atomic.Int32, nacked *atomic.Int32) {
	ch <- &domain.JobMessage{
		JobID: jobID,
		Ack: func() error {
			acked.Add(1)
			return nil
		},
		Nack: func(requeue bool) error {
			nacked.Add(1)
			return nil
		},
	}
}

// Test: pool processes jobs and ACKs them.
func TestPool_ProcessAndAck(t *testing.T) {
	f := newFixture()
	ch, wp, cancel := f.start(t, 2)

	var acked, nacked atomic.Int32
	for i := 0; i < 5; i++ {
		sendJob(ch, f.newJob(), &acked, &nacked)
	}

	time.Sleep(200 * time.Millisecond)
	cancel()
	wp.Stop()

	if acked.Load() != 5 {
		t.Errorf("expected 5 ACKs, got %d", acked.Load())
	}
	if nacked.Load() != 0 {
		t.Errorf("expected 0 NACKs, got %d", nacked.Load())
	}
	for _, job := range f.jobs.All() {
		if job.Status != domain.StatusCompleted {
			t.Errorf("job %s: expected COMPLETED, got %s", job.ID, job.Status)
		}
	}
}

// Test: a job that ends FAILED is still ACKed; the outcome lives on the job row.
func TestPool_FailedJobIsAcked(t *testing.T) {
	f := newFixture()
	ch, wp, cancel := f.start(t, 1)

	jobID := f.newJob()
	job := f.jobs.Job(jobID)
	job.Params.ReferenceImageKeys = nil
	f.jobs.Put(job)

	var acked, nacked atomic.Int32
	sendJob(ch, jobID, &acked, &nacked)

	time.Sleep(200 * time.Millisecond)
	cancel()
	wp.Stop()

	if acked.Load() != 1 || nacked.Load() != 0 {
		t.Errorf("expected 1 ACK / 0 NACK, got %d / %d", acked.Load(), nacked.Load())
	}
	if got := f.jobs.Job(jobID); got.Status != domain.StatusFailed {
		t.Errorf("expected FAILED, got %s", got.Status)
	}
}

// Test: pool NACKs triggers it cannot process.
func TestPool_NacksOnInfrastructureError(t *testing.T) {
	f := newFixture()
	f.idem.AcquireLockFn = func(ctx context.Context, jobID uuid.UUID) (bool, error) {
		return false, errors.New("redis unavailable")
	}
	ch, wp, cancel := f.start(t, 1)

	var acked, nacked atomic.Int32
	sendJob(ch, f.newJob(), &acked, &nacked)

	time.Sleep(200 * time.Millisecond)
	cancel()
	wp.Stop()

	if nacked.Load() != 1 {
		t.Errorf("expected 1 NACK, got %d", nacked.Load())
	}
	if acked.Load() != 0 {
		t.Errorf("expected 0 ACKs, got %d", acked.Load())
	}
}

// Test: pool handles duplicate triggers (ACKs them, not NACKs).
func TestPool_DuplicateIsAcked(t *testing.T) {
	f := newFixture()
	f.idem.AcquireLockFn = func(ctx context.Context, jobID uuid.UUID) (bool, error) {
		return false, nil
	}
	ch, wp, cancel := f.start(t, 1)

	var acked, nacked atomic.Int32
	sendJob(ch, f.newJob(), &acked, &nacked)

	time.Sleep(200 * time.Millisecond)
	cancel()
	wp.Stop()

	if acked.Load() != 1 {
		t.Errorf("expected 1 ACK for duplicate, got %d", acked.Load())
	}
	if nacked.Load() != 0 {
		t.Errorf("expected 0 NACKs, got %d", nacked.Load())
	}
}

// Test: pool shuts down gracefully (context cancellation).
func TestPool_GracefulShutdown(t *testing.T) {
	f := newFixture()
	ch, wp, cancel := f.start(t, 4)

	var acked, nacked atomic.Int32
	sendJob(ch, f.newJob(), &acked, &nacked)
	sendJob(ch, f.newJob(), &acked, &nacked)

	time.Sleep(50 * time.Millisecond)
	cancel()
	wp.Stop()
	close(ch)

	if total := acked.Load() + nacked.Load(); total < 1 {
		t.Errorf("expected at least 1 processed job, got %d", total)
	}
}
