package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tastycreative/genflow/internal/domain"
	"github.com/tastycreative/genflow/internal/publisher"
	"github.com/tastycreative/genflow/internal/repository"
	"github.com/tastycreative/genflow/internal/storage"
)

const (
	maxImageCount  = 6
	maxPromptBytes = 8 << 10
	maxReferences  = 10
)

// GenerationDefaults fills parameters the caller left empty.
type GenerationDefaults struct {
	Model string
	Size  string
}

// SubmitGenerationUsecase validates and enqueues generation requests.
type SubmitGenerationUsecase struct {
	repo      repository.JobRepository
	publisher publisher.Publisher
	defaults  GenerationDefaults
	logger    *zap.Logger
}

// NewSubmitGenerationUsecase creates a new SubmitGenerationUsecase.
func NewSubmitGenerationUsecase(repo repository.JobRepository, pub publisher.Publisher, defaults GenerationDefaults, logger *zap.Logger) *SubmitGenerationUsecase {
	return &SubmitGenerationUsecase{
		repo:      repo,
		publisher: pub,
		defaults:  defaults,
		logger:    logger,
	}
}

// Execute validates the request, creates a PENDING job and publishes its trigger.
func (uc *SubmitGenerationUsecase) Execute(ctx context.Context, userID string, req *domain.SubmitRequest) (*domain.SubmitResponse, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}

	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, domain.ErrEmptyPrompt
	}
	if len(prompt) > maxPromptBytes {
		return nil, domain.ErrPayloadTooLarge
	}

	count := req.Count
	if count == 0 {
		count = 1
	}
	if count < 1 || count > maxImageCount {
		return nil, domain.ErrInvalidCount
	}

	if len(req.ReferenceImageKeys) == 0 {
		return nil, domain.ErrNoReferenceImages
	}
	if len(req.ReferenceImageKeys) > maxReferences {
		return nil, fmt.Errorf("%w: at most %d reference images", domain.ErrInvalidReferenceKey, maxReferences)
	}
	for _, key := range req.ReferenceImageKeys {
		if !storage.IsTempKeyOf(key, userID) {
			return nil, domain.ErrInvalidReferenceKey
		}
	}

	if req.SaveToVault && req.VaultFolderID == nil {
		return nil, domain.ErrMissingFolder
	}

	model := req.Model
	if model == "" {
		model = uc.defaults.Model
	}
	size := req.Size
	if size == "" {
		size = uc.defaults.Size
	}

	// Generate UUIDv7 (time-ordered)
	jobID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate UUIDv7: %w", err)
	}

	now := time.Now().UTC()
	job := &domain.Job{
		ID:     jobID,
		UserID: userID,
		Status: domain.StatusPending,
		Stage:  domain.StageQueued,
		Params: domain.GenerationParams{
			Prompt:             prompt,
			Model:              model,
			Size:               size,
			Count:              count,
			Watermark:          req.Watermark,
			ReferenceImageKeys: req.ReferenceImageKeys,
			SaveToVault:        req.SaveToVault,
			VaultFolderID:      req.VaultFolderID,
		},
		ResultURLs: []string{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := uc.repo.Create(ctx, job); err != nil {
		uc.logger.Error("Failed to create job in database", zap.Error(err), zap.String("job_id", jobID.String()))
		return nil, fmt.Errorf("create job: %w", err)
	}

	if err := uc.publisher.Publish(ctx, jobID); err != nil {
		uc.logger.Error("Failed to publish job to queue", zap.Error(err), zap.String("job_id", jobID.String()))
		// The job would never be picked up.
		if failErr := uc.repo.Fail(ctx, jobID, domain.ErrPublishFailed.Error()); failErr != nil {
			uc.logger.Error("Failed to mark unpublished job failed", zap.Error(failErr), zap.String("job_id", jobID.String()))
		}
		return nil, domain.ErrPublishFailed
	}

	uc.logger.Info("Generation job submitted",
		zap.String("job_id", jobID.String()),
		zap.String("user_id", userID),
		zap.Int("count", count),
		zap.Int("references", len(req.ReferenceImageKeys)),
	)

	return &domain.SubmitResponse{JobID: jobID, Status: domain.StatusPending}, nil
}
