package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/tastycreative/genflow/internal/domain"
	"github.com/tastycreative/genflow/internal/imaging"
	"github.com/tastycreative/genflow/internal/repository"
	"github.com/tastycreative/genflow/internal/storage"
)

// DefaultMaxUploadBytes is the largest accepted reference image.
const DefaultMaxUploadBytes = 10 << 20

// UploadReferenceUsecase stores a reference image in the caller's temp area.
type UploadReferenceUsecase struct {
	store    repository.ObjectStore
	maxBytes int64
	logger   *zap.Logger
}

// NewUploadReferenceUsecase creates a new UploadReferenceUsecase.
func NewUploadReferenceUsecase(store repository.ObjectStore, maxBytes int64, logger *zap.Logger) *UploadReferenceUsecase {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &UploadReferenceUsecase{store: store, maxBytes: maxBytes, logger: logger}
}

// Execute validates and uploads data, returning its temp key.
func (uc *UploadReferenceUsecase) Execute(ctx context.Context, userID, filename string, data []byte) (*domain.UploadResponse, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	if int64(len(data)) > uc.maxBytes {
		return nil, domain.ErrPayloadTooLarge
	}

	img, err := imaging.Detect(data)
	if err != nil {
		return nil, domain.ErrUnsupportedMedia
	}

	key := storage.TempKey(userID, filename)
	if err := uc.store.Put(ctx, key, data, img.MimeType); err != nil {
		uc.logger.Error("Failed to upload reference image", zap.Error(err), zap.String("key", key))
		return nil, fmt.Errorf("upload reference: %w", err)
	}

	uc.logger.Debug("Reference image uploaded",
		zap.String("user_id", userID),
		zap.String("key", key),
		zap.Int("size", len(data)),
	)
	return &domain.UploadResponse{Key: key, MimeType: img.MimeType, Size: len(data)}, nil
}
