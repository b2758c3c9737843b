package mock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tastycreative/genflow/internal/domain"
	"github.com/tastycreative/genflow/internal/repository"
)

var _ repository.JobRepository = (*JobRepository)(nil)

// JobRepository is an in-memory test double for repository.JobRepository.
type JobRepository struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*domain.Job

	// Hook functions for injecting errors
	CreateFn         func(ctx context.Context, job *domain.Job) error
	GetByIDFn        func(ctx context.Context, id uuid.UUID) (*domain.Job, error)
	MarkProcessingFn func(ctx context.Context, id uuid.UUID) (*domain.Job, error)
	UpdateProgressFn func(ctx context.Context, id uuid.UUID, stage domain.Stage, progress int, message string) error
	CompleteFn       func(ctx context.Context, id uuid.UUID, resultURLs []string) error
	FailFn           func(ctx context.Context, id uuid.UUID, errMsg string) error

	// Recorded calls for assertions.
	StatusUpdates []StatusUpdate
	Progress      []ProgressUpdate
}

type StatusUpdate struct {
	ID     uuid.UUID
	Status domain.JobStatus
	Error  string
	URLs   []string
}

type ProgressUpdate struct {
	ID       uuid.UUID
	Stage    domain.Stage
	Progress int
}

// NewJobRepository creates an empty repository.
func NewJobRepository() *JobRepository {
	return &JobRepository{jobs: make(map[uuid.UUID]*domain.Job)}
}

// Put stores job directly, bypassing Create hooks.
func (m *JobRepository) Put(job *domain.Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensure()
	m.jobs[job.ID] = job
}

// Job returns a copy of the stored job, or nil.
func (m *JobRepository) Job(id uuid.UUID) *domain.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil
	}
	cp := *job
	return &cp
}

// All returns copies of every stored job.
func (m *JobRepository) All() []*domain.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		cp := *j
		out = append(out, &cp)
	}
	return out
}

// Statuses returns the recorded status transitions.
func (m *JobRepository) Statuses() []StatusUpdate {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]StatusUpdate(nil), m.StatusUpdates...)
}

func (m *JobRepository) ensure() {
	if m.jobs == nil {
		m.jobs = make(map[uuid.UUID]*domain.Job)
	}
}

func (m *JobRepository) Create(ctx context.Context, job *domain.Job) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, job)
	}
	m.Put(job)
	return nil
}

func (m *JobRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	job := m.Job(id)
	if job == nil {
		return nil, domain.ErrJobNotFound
	}
	return job, nil
}

func (m *JobRepository) MarkProcessing(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	if m.MarkProcessingFn != nil {
		return m.MarkProcessingFn(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensure()
	job, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	if job.Status != domain.StatusPending {
		return nil, domain.ErrJobNotPending
	}
	job.Status = domain.StatusProcessing
	job.UpdatedAt = time.Now().UTC()
	m.StatusUpdates = append(m.StatusUpdates, StatusUpdate{ID: id, Status: domain.StatusProcessing})
	cp := *job
	return &cp, nil
}

func (m *JobRepository) UpdateProgress(ctx context.Context, id uuid.UUID, stage domain.Stage, progress int, message string) error {
	m.mu.Lock()
	m.Progress = append(m.Progress, ProgressUpdate{ID: id, Stage: stage, Progress: progress})
	if job, ok := m.jobs[id]; ok {
		job.Stage, job.Progress, job.Message = stage, progress, message
	}
	m.mu.Unlock()
	if m.UpdateProgressFn != nil {
		return m.UpdateProgressFn(ctx, id, stage, progress, message)
	}
	return nil
}

func (m *JobRepository) Complete(ctx context.Context, id uuid.UUID, resultURLs []string) error {
	if m.CompleteFn != nil {
		if err := m.CompleteFn(ctx, id, resultURLs); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StatusUpdates = append(m.StatusUpdates, StatusUpdate{ID: id, Status: domain.StatusCompleted, URLs: resultURLs})
	if job, ok := m.jobs[id]; ok {
		job.Status = domain.StatusCompleted
		job.Stage = domain.StageCompleted
		job.Progress = domain.ProgressDone
		job.ResultURLs = resultURLs
	}
	return nil
}

func (m *JobRepository) Fail(ctx context.Context, id uuid.UUID, errMsg string) error {
	if m.FailFn != nil {
		if err := m.FailFn(ctx, id, errMsg); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StatusUpdates = append(m.StatusUpdates, StatusUpdate{ID: id, Status: domain.StatusFailed, Error: errMsg})
	if job, ok := m.jobs[id]; ok {
		job.Status = domain.StatusFailed
		job.Stage = domain.StageFailed
		job.Error = errMsg
	}
	return nil
}
