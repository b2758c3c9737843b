package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tastycreative/genflow/internal/background"
	"github.com/tastycreative/genflow/internal/domain"
	"github.com/tastycreative/genflow/internal/fanout"
	"github.com/tastycreative/genflow/internal/imaging"
	"github.com/tastycreative/genflow/internal/metrics"
	"github.com/tastycreative/genflow/internal/repository"
	"github.com/tastycreative/genflow/internal/storage"
	"github.com/tastycreative/genflow/internal/synthesis"
)

const (
	// ExecutionBudget bounds a whole job.
	ExecutionBudget = 300 * time.Second

	// GenerationTimeout bounds each synthesis call. It leaves a fifth of the
	// budget for loading references and saving.
	GenerationTimeout = ExecutionBudget * 4 / 5

	eventTimeout   = 5 * time.Second
	persistTimeout = 10 * time.Second

	vaultSource = "seedream"
)

// ProcessGenerationDeps groups the collaborators of ProcessGenerationUsecase.
type ProcessGenerationDeps struct {
	Jobs        repository.JobRepository
	Artifacts   repository.ArtifactRepository
	Folders     repository.FolderRepository
	Idempotency repository.IdempotencyStore
	Store       repository.ObjectStore
	Synthesizer repository.Synthesizer
	Notifier    repository.Notifier
	Runner      *background.Runner
}

// ProcessOption customizes a ProcessGenerationUsecase.
type ProcessOption func(*ProcessGenerationUsecase)

// WithGenerationTimeout overrides the per-call synthesis timeout.
func WithGenerationTimeout(d time.Duration) ProcessOption {
	return func(uc *ProcessGenerationUsecase) { uc.generationTimeout = d }
}

// WithExecutionBudget overrides the whole-job deadline.
func WithExecutionBudget(d time.Duration) ProcessOption {
	return func(uc *ProcessGenerationUsecase) { uc.budget = d }
}

// WithOutputFormat selects "original" or "webp" output encoding.
func WithOutputFormat(format string, quality int) ProcessOption {
	return func(uc *ProcessGenerationUsecase) {
		uc.outputFormat = format
		uc.webpQuality = quality
	}
}

// WithClock replaces time.Now, used to name output files.
func WithClock(now func() time.Time) ProcessOption {
	return func(uc *ProcessGenerationUsecase) { uc.now = now }
}

// ProcessGenerationUsecase runs one generation job: it loads the reference
// images, fans out one synthesis call per requested image, persists whatever
// succeeded and records the terminal state of the job.
type ProcessGenerationUsecase struct {
	jobs       repository.JobRepository
	artifacts  repository.ArtifactRepository
	folders    repository.FolderRepository
	idempotent repository.IdempotencyStore
	store      repository.ObjectStore
	synth      repository.Synthesizer
	notifier   repository.Notifier
	runner     *background.Runner
	logger     *zap.Logger

	generationTimeout time.Duration
	budget            time.Duration
	outputFormat      string
	webpQuality       int
	now               func() time.Time
}

// NewProcessGenerationUsecase creates a new ProcessGenerationUsecase.
func NewProcessGenerationUsecase(deps ProcessGenerationDeps, logger *zap.Logger, opts ...ProcessOption) *ProcessGenerationUsecase {
	uc := &ProcessGenerationUsecase{
		jobs:              deps.Jobs,
		artifacts:         deps.Artifacts,
		folders:           deps.Folders,
		idempotent:        deps.Idempotency,
		store:             deps.Store,
		synth:             deps.Synthesizer,
		notifier:          deps.Notifier,
		runner:            deps.Runner,
		logger:            logger,
		generationTimeout: GenerationTimeout,
		budget:            ExecutionBudget,
		outputFormat:      imaging.FormatOriginal,
		webpQuality:       90,
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(uc)
	}
	if uc.runner == nil {
		uc.runner = background.NewRunner(0, logger)
	}
	return uc
}

// destination is where the outputs of a job are written.
type destination struct {
	folder *domain.VaultFolder // nil for the default generated-images area
}

type generationsFailedError struct {
	requested int
	last      error
}

func (e *generationsFailedError) Error() string {
	return fmt.Sprintf("all %d generation requests failed", e.requested)
}

func (e *generationsFailedError) Is(target error) bool {
	return target == domain.ErrAllGenerationsFailed
}

func (e *generationsFailedError) Unwrap() error { return e.last }

// Execute claims and processes a job.
// Returns (isDuplicate, error). A job that ends FAILED is not an error; err is
// only set when the job could not be claimed or its outcome not recorded.
func (uc *ProcessGenerationUsecase) Execute(ctx context.Context, jobID uuid.UUID) (bool, error) {
	// Step 1: Idempotency check
	acquired, err := uc.idempotent.AcquireLock(ctx, jobID)
	if err != nil {
		uc.logger.Error("Failed to acquire idempotency lock", zap.Error(err), zap.String("job_id", jobID.String()))
		return false, err
	}
	if !acquired {
		uc.logger.Info("Duplicate trigger detected, skipping", zap.String("job_id", jobID.String()))
		return true, nil
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
		defer cancel()
		if err := uc.idempotent.ReleaseLock(releaseCtx, jobID); err != nil {
			uc.logger.Warn("Failed to release idempotency lock", zap.Error(err), zap.String("job_id", jobID.String()))
		}
	}()

	// Step 2: Claim the job
	job, err := uc.jobs.MarkProcessing(ctx, jobID)
	if errors.Is(err, domain.ErrJobNotPending) {
		uc.logger.Info("Job already claimed, skipping", zap.String("job_id", jobID.String()))
		return true, nil
	}
	if err != nil {
		uc.logger.Error("Failed to claim job", zap.Error(err), zap.String("job_id", jobID.String()))
		return false, err
	}

	return false, uc.process(ctx, job)
}

func (uc *ProcessGenerationUsecase) process(parent context.Context, job *domain.Job) error {
	ctx, cancel := context.WithTimeout(parent, uc.budget)
	defer cancel()

	start := time.Now()
	log := uc.logger.With(zap.String("job_id", job.ID.String()), zap.String("user_id", job.UserID))
	log.Info("Processing generation job",
		zap.Int("count", job.Params.ImageCount()),
		zap.Int("references", len(job.Params.ReferenceImageKeys)),
		zap.Bool("vault", job.Params.SaveToVault),
	)

	// Temp references are deleted on every path, once.
	defer uc.scheduleCleanup(job, log)

	artifacts, err := uc.generate(ctx, job, log)
	if err != nil {
		return uc.fail(parent, job, err, start, log)
	}
	return uc.complete(parent, job, artifacts, start, log)
}

func (uc *ProcessGenerationUsecase) generate(ctx context.Context, job *domain.Job, log *zap.Logger) (artifacts []domain.Artifact, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Generation panic recovered", zap.Any("panic", r), zap.Stack("stack"))
			err = fmt.Errorf("internal error: %v", r)
		}
	}()

	params := job.Params
	requested := params.ImageCount()

	if err := uc.progress(ctx, job, domain.StageLoadingReferences, domain.ProgressLoadingReferences, "Loading reference images"); err != nil {
		return nil, err
	}

	references := uc.loadReferences(ctx, job, log)
	if len(references) == 0 {
		return nil, domain.ErrNoReferenceImages
	}

	dest, err := uc.resolveDestination(ctx, job)
	if err != nil {
		return nil, err
	}

	if err := uc.progress(ctx, job, domain.StageGenerating, domain.ProgressGenerating,
		fmt.Sprintf("Generating %d image(s)", requested)); err != nil {
		return nil, err
	}

	req := &domain.SynthesisRequest{
		Model:     params.Model,
		Prompt:    params.Prompt,
		Images:    references,
		Size:      params.Size,
		Watermark: params.Watermark,
	}
	generated := fanout.Run(ctx, requested, uc.generationTimeout, func(ctx context.Context, index int) (*domain.SynthesizedImage, error) {
		return uc.synth.Generate(ctx, req)
	})

	succeeded, failed := fanout.Count(generated)
	metrics.GenerationCalls.WithLabelValues("success").Add(float64(succeeded))
	metrics.GenerationCalls.WithLabelValues("failure").Add(float64(failed))

	var lastErr error
	for _, o := range fanout.Failures(generated) {
		lastErr = o.Err
		fields := []zap.Field{zap.Int("index", o.Index), zap.Error(o.Err)}
		var apiErr *synthesis.APIError
		if errors.As(o.Err, &apiErr) {
			fields = append(fields, zap.Int("api_status", apiErr.StatusCode))
		}
		log.Warn("Generation call failed", fields...)
	}
	if succeeded == 0 {
		return nil, &generationsFailedError{requested: requested, last: lastErr}
	}
	log.Info("Generation calls finished", zap.Int("succeeded", succeeded), zap.Int("failed", failed))

	if err := uc.progress(ctx, job, domain.StageSaving, domain.ProgressSaving, "Saving generated images"); err != nil {
		return nil, err
	}

	successes := fanout.Successes(generated)
	generatedAt := uc.now()
	saved := fanout.Run(ctx, len(successes), 0, func(ctx context.Context, i int) (domain.Artifact, error) {
		return uc.save(ctx, job, dest, successes[i].Index, successes[i].Value, generatedAt)
	})

	for _, o := range fanout.Failures(saved) {
		log.Warn("Failed to save generated image", zap.Int("index", successes[o.Index].Index), zap.Error(o.Err))
	}

	for _, o := range fanout.Successes(saved) {
		artifacts = append(artifacts, o.Value)
	}
	if len(artifacts) == 0 {
		return nil, domain.ErrNoImagesSaved
	}
	sort.Slice(artifacts, func(i, j int) bool { return artifacts[i].Index < artifacts[j].Index })
	return artifacts, nil
}

// loadReferences downloads the job's temp references and encodes each as a
// data URI. Missing or unreadable blobs are skipped.
func (uc *ProcessGenerationUsecase) loadReferences(ctx context.Context, job *domain.Job, log *zap.Logger) []string {
	keys := job.Params.ReferenceImageKeys
	loaded := fanout.Run(ctx, len(keys), 0, func(ctx context.Context, i int) (string, error) {
		key := keys[i]
		if !storage.IsTempKeyOf(key, job.UserID) {
			return "", domain.ErrInvalidReferenceKey
		}
		data, err := uc.store.Get(ctx, key)
		if err != nil {
			return "", err
		}
		img, err := imaging.Detect(data)
		if err != nil {
			return "", err
		}
		return synthesis.DataURI(img.MimeType, data), nil
	})

	references := make([]string, 0, len(keys))
	for _, o := range loaded {
		if !o.OK() {
			log.Warn("Skipping reference image", zap.String("key", keys[o.Index]), zap.Error(o.Err))
			continue
		}
		references = append(references, o.Value)
	}
	return references
}

func (uc *ProcessGenerationUsecase) resolveDestination(ctx context.Context, job *domain.Job) (destination, error) {
	if !job.Params.SaveToVault {
		return destination{}, nil
	}
	if job.Params.VaultFolderID == nil {
		return destination{}, domain.ErrMissingFolder
	}
	folder, err := uc.folders.ResolveForWrite(ctx, *job.Params.VaultFolderID, job.UserID)
	if err != nil {
		return destination{}, err
	}
	return destination{folder: folder}, nil
}

func (uc *ProcessGenerationUsecase) save(
	ctx context.Context,
	job *domain.Job,
	dest destination,
	index int,
	img *domain.SynthesizedImage,
	generatedAt time.Time,
) (domain.Artifact, error) {
	data, err := uc.synth.Fetch(ctx, img)
	if err != nil {
		return domain.Artifact{}, err
	}
	out, err := imaging.Normalize(data, uc.outputFormat, uc.webpQuality)
	if err != nil {
		return domain.Artifact{}, err
	}

	filename := storage.OutputFilename(generatedAt, index, out.Ext)
	resolution := img.Size
	if resolution == "" {
		resolution = job.Params.Size
	}

	if dest.folder != nil {
		key := storage.VaultKey(dest.folder.OwnerID, dest.folder.ID, filename)
		if err := uc.store.Put(ctx, key, out.Data, out.MimeType); err != nil {
			return domain.Artifact{}, fmt.Errorf("upload %s: %w", key, err)
		}
		item := &domain.VaultItem{
			ID:         uuid.New(),
			FolderID:   dest.folder.ID,
			OwnerID:    dest.folder.OwnerID,
			CreatedBy:  job.UserID,
			Filename:   filename,
			StorageKey: key,
			URL:        uc.store.URL(key),
			MimeType:   out.MimeType,
			FileSize:   int64(len(out.Data)),
			Metadata: domain.VaultItemMetadata{
				Source:     vaultSource,
				JobID:      job.ID,
				Prompt:     job.Params.Prompt,
				Model:      job.Params.Model,
				Resolution: resolution,
			},
			CreatedAt: time.Now().UTC(),
		}
		if err := uc.artifacts.CreateVaultItem(ctx, item); err != nil {
			return domain.Artifact{}, err
		}
		metrics.ArtifactsSaved.WithLabelValues("vault").Inc()
		return domain.Artifact{ID: item.ID, URL: item.URL, Key: key, Vault: true, Index: index}, nil
	}

	key := storage.GeneratedKey(job.UserID, filename)
	if err := uc.store.Put(ctx, key, out.Data, out.MimeType); err != nil {
		return domain.Artifact{}, fmt.Errorf("upload %s: %w", key, err)
	}
	row := &domain.GeneratedImage{
		ID:         uuid.New(),
		JobID:      job.ID,
		UserID:     job.UserID,
		Filename:   filename,
		StorageKey: key,
		URL:        uc.store.URL(key),
		MimeType:   out.MimeType,
		FileSize:   int64(len(out.Data)),
		Prompt:     job.Params.Prompt,
		Model:      job.Params.Model,
		Resolution: resolution,
		CreatedAt:  time.Now().UTC(),
	}
	if err := uc.artifacts.CreateGeneratedImage(ctx, row); err != nil {
		return domain.Artifact{}, err
	}
	metrics.ArtifactsSaved.WithLabelValues("generated").Inc()
	return domain.Artifact{ID: row.ID, URL: row.URL, Key: key, Index: index}, nil
}

// progress persists the stage and publishes it. A failed publish is only logged.
func (uc *ProcessGenerationUsecase) progress(ctx context.Context, job *domain.Job, stage domain.Stage, pct int, message string) error {
	if err := uc.jobs.UpdateProgress(ctx, job.ID, stage, pct, message); err != nil {
		return fmt.Errorf("update progress: %w", err)
	}

	eventCtx, cancel := context.WithTimeout(ctx, eventTimeout)
	defer cancel()
	event := &domain.Event{
		Type:      domain.EventProgress,
		JobID:     job.ID,
		Status:    domain.StatusProcessing,
		Stage:     stage,
		Progress:  pct,
		Message:   message,
		Requested: job.Params.ImageCount(),
	}
	if err := uc.notifier.Publish(eventCtx, job.UserID, event); err != nil {
		uc.logger.Warn("Failed to publish progress event", zap.Error(err), zap.String("job_id", job.ID.String()))
	}
	return nil
}

func (uc *ProcessGenerationUsecase) complete(parent context.Context, job *domain.Job, artifacts []domain.Artifact, start time.Time, log *zap.Logger) error {
	urls := make([]string, len(artifacts))
	for i, a := range artifacts {
		urls[i] = a.URL
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), persistTimeout)
	defer cancel()
	if err := uc.jobs.Complete(ctx, job.ID, urls); err != nil {
		log.Error("Failed to mark job completed", zap.Error(err))
		return uc.fail(parent, job, fmt.Errorf("record completion: %w", err), start, log)
	}

	requested := job.Params.ImageCount()
	uc.notify(job, &domain.Event{
		Type:      domain.EventCompleted,
		JobID:     job.ID,
		Status:    domain.StatusCompleted,
		Stage:     domain.StageCompleted,
		Progress:  domain.ProgressDone,
		Message:   fmt.Sprintf("Generated %d image(s)", len(artifacts)),
		Artifacts: artifacts,
		Requested: requested,
	})

	metrics.JobsTotal.WithLabelValues(string(domain.StatusCompleted)).Inc()
	metrics.JobDuration.WithLabelValues(string(domain.StatusCompleted)).Observe(time.Since(start).Seconds())
	log.Info("Generation job completed",
		zap.Int("artifacts", len(artifacts)),
		zap.Int("requested", requested),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

func (uc *ProcessGenerationUsecase) fail(parent context.Context, job *domain.Job, cause error, start time.Time, log *zap.Logger) error {
	msg := cause.Error()
	log.Warn("Generation job failed", zap.String("reason", msg))

	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), persistTimeout)
	defer cancel()

	metrics.JobsTotal.WithLabelValues(string(domain.StatusFailed)).Inc()
	metrics.JobDuration.WithLabelValues(string(domain.StatusFailed)).Observe(time.Since(start).Seconds())

	recordErr := uc.jobs.Fail(ctx, job.ID, msg)

	// The owner hears about the failure even if it could not be stored.
	uc.notify(job, &domain.Event{
		Type:      domain.EventFailed,
		JobID:     job.ID,
		Status:    domain.StatusFailed,
		Stage:     domain.StageFailed,
		Error:     msg,
		Requested: job.Params.ImageCount(),
	})

	if recordErr != nil {
		log.Error("Failed to mark job failed", zap.Error(recordErr))
		return fmt.Errorf("record failure: %w", recordErr)
	}
	return nil
}

// notify publishes a terminal event off the job's critical path.
func (uc *ProcessGenerationUsecase) notify(job *domain.Job, event *domain.Event) {
	uc.runner.Go("notify "+job.ID.String(), func(ctx context.Context) error {
		return uc.notifier.Publish(ctx, job.UserID, event)
	})
}

// scheduleCleanup deletes the job's temp references in the background.
// Keys outside the owner's temp area are never deleted.
func (uc *ProcessGenerationUsecase) scheduleCleanup(job *domain.Job, log *zap.Logger) {
	var keys []string
	for _, key := range job.Params.ReferenceImageKeys {
		if storage.IsTempKeyOf(key, job.UserID) {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return
	}

	uc.runner.Go("cleanup "+job.ID.String(), func(ctx context.Context) error {
		var errs []error
		for _, key := range keys {
			if err := uc.store.Delete(ctx, key); err != nil {
				metrics.CleanupFailures.Inc()
				errs = append(errs, fmt.Errorf("delete %s: %w", key, err))
			}
		}
		if len(errs) == 0 {
			log.Debug("Temp references deleted", zap.Int("count", len(keys)))
		}
		return errors.Join(errs...)
	})
}
