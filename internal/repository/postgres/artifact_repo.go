package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tastycreative/genflow/internal/domain"
	"github.com/tastycreative/genflow/internal/repository"
)

var _ repository.ArtifactRepository = (*pgArtifactRepo)(nil)

type pgArtifactRepo struct {
	pool *pgxpool.Pool
}

// NewPostgresArtifactRepository creates a repository for generated images and vault items.
func NewPostgresArtifactRepository(pool *pgxpool.Pool) repository.ArtifactRepository {
	return &pgArtifactRepo{pool: pool}
}

func (r *pgArtifactRepo) CreateGeneratedImage(ctx context.Context, img *domain.GeneratedImage) error {
	query := `
		INSERT INTO generated_images
			(id, job_id, user_id, filename, storage_key, url, mime_type, file_size, prompt, model, resolution, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	now := time.Now().UTC()
	_, err := r.pool.Exec(ctx, query,
		img.ID, img.JobID, img.UserID, img.Filename, img.StorageKey, img.URL,
		img.MimeType, img.FileSize, img.Prompt, img.Model, img.Resolution, now,
	)
	if err != nil {
		return fmt.Errorf("postgres: create generated image: %w", err)
	}
	img.CreatedAt = now
	return nil
}

func (r *pgArtifactRepo) CreateVaultItem(ctx context.Context, item *domain.VaultItem) error {
	query := `
		INSERT INTO vault_items
			(id, folder_id, owner_id, created_by, filename, storage_key, url, mime_type, file_size, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	now := time.Now().UTC()
	_, err := r.pool.Exec(ctx, query,
		item.ID, item.FolderID, item.OwnerID, item.CreatedBy, item.Filename, item.StorageKey,
		item.URL, item.MimeType, item.FileSize, item.Metadata, now,
	)
	if err != nil {
		return fmt.Errorf("postgres: create vault item: %w", err)
	}
	item.CreatedAt = now
	return nil
}
