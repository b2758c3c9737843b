package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tastycreative/genflow/internal/domain"
	"github.com/tastycreative/genflow/internal/repository"
)

// Ensure pgJobRepo implements repository.JobRepository.
var _ repository.JobRepository = (*pgJobRepo)(nil)

const jobColumns = `id, user_id, status, params, progress, COALESCE(stage, ''),
	COALESCE(message, ''), COALESCE(error, ''), result_urls, created_at, updated_at`

type pgJobRepo struct {
	pool *pgxpool.Pool
}

// NewPostgresJobRepository creates a new PostgreSQL-backed job repository.
func NewPostgresJobRepository(pool *pgxpool.Pool) repository.JobRepository {
	return &pgJobRepo{pool: pool}
}

func (r *pgJobRepo) Create(ctx context.Context, job *domain.Job) error {
	query := `
		INSERT INTO generation_jobs (id, user_id, status, params, progress, stage, result_urls, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	now := time.Now().UTC()
	if job.ResultURLs == nil {
		job.ResultURLs = []string{}
	}
	_, err := r.pool.Exec(ctx, query,
		job.ID, job.UserID, job.Status, job.Params, job.Progress, job.Stage,
		job.ResultURLs, now, now,
	)
	if err != nil {
		return fmt.Errorf("postgres: create job: %w", err)
	}
	job.CreatedAt = now
	job.UpdatedAt = now
	return nil
}

func (r *pgJobRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM generation_jobs WHERE id = $1`

	job, err := scanJob(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("postgres: get job by id: %w", err)
	}
	return job, nil
}

func (r *pgJobRepo) MarkProcessing(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	query := `
		UPDATE generation_jobs
		SET status = $1, stage = $2, started_at = $3, updated_at = $3
		WHERE id = $4 AND status = $5
		RETURNING ` + jobColumns

	job, err := scanJob(r.pool.QueryRow(ctx, query,
		domain.StatusProcessing, domain.StageLoadingReferences, time.Now().UTC(), id, domain.StatusPending,
	))
	if err == nil {
		return job, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("postgres: mark processing: %w", err)
	}

	// Distinguish a missing job from one that was already claimed.
	if _, getErr := r.GetByID(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, domain.ErrJobNotPending
}

func (r *pgJobRepo) UpdateProgress(ctx context.Context, id uuid.UUID, stage domain.Stage, progress int, message string) error {
	query := `
		UPDATE generation_jobs
		SET stage = $1, progress = $2, message = $3, updated_at = $4
		WHERE id = $5 AND status = $6`

	tag, err := r.pool.Exec(ctx, query, stage, progress, message, time.Now().UTC(), id, domain.StatusProcessing)
	if err != nil {
		return fmt.Errorf("postgres: update progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}

func (r *pgJobRepo) Complete(ctx context.Context, id uuid.UUID, resultURLs []string) error {
	query := `
		UPDATE generation_jobs
		SET status = $1, stage = $2, progress = $3, result_urls = $4, error = NULL,
		    completed_at = $5, updated_at = $5
		WHERE id = $6`

	tag, err := r.pool.Exec(ctx, query,
		domain.StatusCompleted, domain.StageCompleted, domain.ProgressDone, resultURLs, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("postgres: complete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}

func (r *pgJobRepo) Fail(ctx context.Context, id uuid.UUID, errMsg string) error {
	query := `
		UPDATE generation_jobs
		SET status = $1, stage = $2, error = $3, completed_at = $4, updated_at = $4
		WHERE id = $5`

	tag, err := r.pool.Exec(ctx, query, domain.StatusFailed, domain.StageFailed, errMsg, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("postgres: fail job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}

func scanJob(row pgx.Row) (*domain.Job, error) {
	job := &domain.Job{}
	err := row.Scan(
		&job.ID, &job.UserID, &job.Status, &job.Params, &job.Progress, &job.Stage,
		&job.Message, &job.Error, &job.ResultURLs, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return job, nil
}
