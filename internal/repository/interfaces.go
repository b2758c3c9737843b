package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/tastycreative/genflow/internal/domain"
)

// JobRepository defines persistence operations on generation jobs.
// Implementations must be safe for concurrent use.
type JobRepository interface {
	// Create inserts a new PENDING job.
	Create(ctx context.Context, job *domain.Job) error

	// GetByID retrieves a job by its UUID.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error)

	// MarkProcessing moves a PENDING job to PROCESSING and returns it.
	// Returns domain.ErrJobNotPending if the job was already claimed or finished.
	MarkProcessing(ctx context.Context, id uuid.UUID) (*domain.Job, error)

	// UpdateProgress records the stage, progress percentage and message of a PROCESSING job.
	UpdateProgress(ctx context.Context, id uuid.UUID, stage domain.Stage, progress int, message string) error

	// Complete marks the job COMPLETED with progress 100 and its artifact URLs.
	Complete(ctx context.Context, id uuid.UUID, resultURLs []string) error

	// Fail marks the job FAILED with a human-readable error.
	Fail(ctx context.Context, id uuid.UUID, errMsg string) error
}

// ArtifactRepository persists generated outputs.
type ArtifactRepository interface {
	// CreateGeneratedImage inserts one row for the default output destination.
	CreateGeneratedImage(ctx context.Context, img *domain.GeneratedImage) error

	// CreateVaultItem inserts one row into a vault folder.
	CreateVaultItem(ctx context.Context, item *domain.VaultItem) error
}

// FolderRepository resolves vault folders.
type FolderRepository interface {
	// ResolveForWrite returns the folder if userID owns it or holds an EDIT share.
	// Returns domain.ErrFolderNotFound or domain.ErrFolderAccessDenied otherwise.
	ResolveForWrite(ctx context.Context, folderID uuid.UUID, userID string) (*domain.VaultFolder, error)
}

// IdempotencyStore defines the interface for distributed deduplication locks.
type IdempotencyStore interface {
	// AcquireLock attempts to acquire an exclusive processing lock for a job.
	// Returns true if the lock was acquired (first time), false if already locked (duplicate).
	AcquireLock(ctx context.Context, jobID uuid.UUID) (bool, error)

	// ReleaseLock sets a TTL on the lock so it is eventually cleaned up.
	ReleaseLock(ctx context.Context, jobID uuid.UUID) error
}

// ObjectStore is byte-blob storage addressed by key.
type ObjectStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte, contentType string) error
	// Delete removes a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// URL returns the permanent public URL of a key.
	URL(key string) string
}

// Synthesizer produces one image per call from the external synthesis API.
type Synthesizer interface {
	Generate(ctx context.Context, req *domain.SynthesisRequest) (*domain.SynthesizedImage, error)
	Fetch(ctx context.Context, img *domain.SynthesizedImage) ([]byte, error)
}

// Notifier publishes realtime events to a user.
type Notifier interface {
	Publish(ctx context.Context, userID string, event *domain.Event) error
}
