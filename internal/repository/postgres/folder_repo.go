package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tastycreative/genflow/internal/domain"
	"github.com/tastycreative/genflow/internal/repository"
)

var _ repository.FolderRepository = (*pgFolderRepo)(nil)

type pgFolderRepo struct {
	pool *pgxpool.Pool
}

// NewPostgresFolderRepository creates a vault folder repository.
func NewPostgresFolderRepository(pool *pgxpool.Pool) repository.FolderRepository {
	return &pgFolderRepo{pool: pool}
}

func (r *pgFolderRepo) ResolveForWrite(ctx context.Context, folderID uuid.UUID, userID string) (*domain.VaultFolder, error) {
	query := `
		SELECT f.id, f.owner_id, f.name, s.permission
		FROM vault_folders f
		LEFT JOIN vault_folder_shares s
		       ON s.folder_id = f.id AND s.shared_with_user_id = $2
		WHERE f.id = $1`

	folder := &domain.VaultFolder{}
	var permission *string
	err := r.pool.QueryRow(ctx, query, folderID, userID).Scan(&folder.ID, &folder.OwnerID, &folder.Name, &permission)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrFolderNotFound
		}
		return nil, fmt.Errorf("postgres: resolve folder: %w", err)
	}

	if !CanWrite(folder, userID, permission) {
		return nil, domain.ErrFolderAccessDenied
	}
	return folder, nil
}

// CanWrite reports whether userID may add items to folder given its share permission, if any.
func CanWrite(folder *domain.VaultFolder, userID string, permission *string) bool {
	if folder.OwnerID == userID {
		return true
	}
	return permission != nil && domain.SharePermission(*permission) == domain.PermissionEdit
}
