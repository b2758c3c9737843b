package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tastycreative/genflow/internal/domain"
	"github.com/tastycreative/genflow/internal/usecase"
)

// InternalHandler serves service-to-service routes guarded by the shared secret.
type InternalHandler struct {
	triggerUC *usecase.TriggerUsecase
	logger    *zap.Logger
}

// NewInternalHandler creates a new InternalHandler.
func NewInternalHandler(triggerUC *usecase.TriggerUsecase, logger *zap.Logger) *InternalHandler {
	return &InternalHandler{triggerUC: triggerUC, logger: logger}
}

// Process handles POST /internal/generations/process
func (h *InternalHandler) Process(c *gin.Context) {
	var msg domain.TriggerMessage
	if err := c.ShouldBindJSON(&msg); err != nil || msg.JobID == uuid.Nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "jobId is required"})
		return
	}

	if err := h.triggerUC.Execute(c.Request.Context(), msg.JobID); err != nil {
		writeError(c, h.logger, "Trigger processing", err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"jobId": msg.JobID, "status": "triggered"})
}
