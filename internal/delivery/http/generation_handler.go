package http

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tastycreative/genflow/internal/delivery/http/middleware"
	"github.com/tastycreative/genflow/internal/domain"
	"github.com/tastycreative/genflow/internal/usecase"
)

// GenerationHandler handles HTTP requests for generation jobs and their reference images.
type GenerationHandler struct {
	submitUC *usecase.SubmitGenerationUsecase
	getJobUC *usecase.GetJobUsecase
	uploadUC *usecase.UploadReferenceUsecase
	maxBytes int64
	logger   *zap.Logger
}

// NewGenerationHandler creates a new GenerationHandler.
func NewGenerationHandler(
	submitUC *usecase.SubmitGenerationUsecase,
	getJobUC *usecase.GetJobUsecase,
	uploadUC *usecase.UploadReferenceUsecase,
	maxUploadBytes int64,
	logger *zap.Logger,
) *GenerationHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = usecase.DefaultMaxUploadBytes
	}
	return &GenerationHandler{
		submitUC: submitUC,
		getJobUC: getJobUC,
		uploadUC: uploadUC,
		maxBytes: maxUploadBytes,
		logger:   logger,
	}
}

// Submit handles POST /api/v1/generations
func (h *GenerationHandler) Submit(c *gin.Context) {
	var req domain.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body: " + err.Error(),
		})
		return
	}

	resp, err := h.submitUC.Execute(c.Request.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		writeError(c, h.logger, "Submit generation", err)
		return
	}

	c.JSON(http.StatusAccepted, resp)
}

// GetByID handles GET /api/v1/generations/:id
func (h *GenerationHandler) GetByID(c *gin.Context) {
	idStr := c.Param("id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid job ID format"})
		return
	}

	job, err := h.getJobUC.Execute(c.Request.Context(), middleware.GetUserID(c), id)
	if err != nil {
		writeError(c, h.logger, "Get job", err)
		return
	}

	c.JSON(http.StatusOK, job)
}

// UploadReference handles POST /api/v1/references (multipart field "file")
func (h *GenerationHandler) UploadReference(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing file field"})
		return
	}
	if fh.Size > h.maxBytes {
		writeError(c, h.logger, "Upload reference", domain.ErrPayloadTooLarge)
		return
	}

	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unreadable file"})
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.maxBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unreadable file"})
		return
	}

	resp, err := h.uploadUC.Execute(c.Request.Context(), middleware.GetUserID(c), fh.Filename, data)
	if err != nil {
		writeError(c, h.logger, "Upload reference", err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}
