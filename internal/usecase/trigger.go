package usecase

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tastycreative/genflow/internal/domain"
	"github.com/tastycreative/genflow/internal/publisher"
	"github.com/tastycreative/genflow/internal/repository"
)

// TriggerUsecase re-publishes a processing trigger for an existing job.
// It backs the internal endpoint used by schedulers and retries.
type TriggerUsecase struct {
	repo      repository.JobRepository
	publisher publisher.Publisher
	logger    *zap.Logger
}

// NewTriggerUsecase creates a new TriggerUsecase.
func NewTriggerUsecase(repo repository.JobRepository, pub publisher.Publisher, logger *zap.Logger) *TriggerUsecase {
	return &TriggerUsecase{repo: repo, publisher: pub, logger: logger}
}

// Execute publishes a trigger for jobID if the job is still PENDING.
func (uc *TriggerUsecase) Execute(ctx context.Context, jobID uuid.UUID) error {
	job, err := uc.repo.GetByID(ctx, jobID)
	if err != nil {
		return domain.ErrJobNotFound
	}
	if job.Status != domain.StatusPending {
		return domain.ErrJobNotPending
	}

	if err := uc.publisher.Publish(ctx, jobID); err != nil {
		uc.logger.Error("Failed to publish trigger", zap.Error(err), zap.String("job_id", jobID.String()))
		return domain.ErrPublishFailed
	}

	uc.logger.Info("Processing triggered", zap.String("job_id", jobID.String()), zap.String("status", string(job.Status)))
	return nil
}
