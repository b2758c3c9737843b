package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tastycreative/genflow/internal/domain"
)

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrJobNotFound),
		errors.Is(err, domain.ErrFolderNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrFolderAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrJobNotPending):
		return http.StatusConflict
	case errors.Is(err, domain.ErrEmptyPrompt),
		errors.Is(err, domain.ErrInvalidCount),
		errors.Is(err, domain.ErrNoReferenceImages),
		errors.Is(err, domain.ErrInvalidReferenceKey),
		errors.Is(err, domain.ErrMissingFolder):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnsupportedMedia):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, domain.ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, domain.ErrPublishFailed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, logger *zap.Logger, op string, err error) {
	status := statusFor(err)
	switch status {
	case http.StatusInternalServerError:
		logger.Error(op+" failed", zap.Error(err))
		c.JSON(status, gin.H{"error": "Internal server error"})
	case http.StatusServiceUnavailable:
		c.JSON(status, gin.H{"error": "Service temporarily unavailable"})
	default:
		c.JSON(status, gin.H{"error": err.Error()})
	}
}
