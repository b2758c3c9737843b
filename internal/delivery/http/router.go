package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/tastycreative/genflow/internal/delivery/http/middleware"
	"github.com/tastycreative/genflow/internal/usecase"
)

// RouterDeps groups everything the HTTP API serves.
type RouterDeps struct {
	SubmitUC       *usecase.SubmitGenerationUsecase
	GetJobUC       *usecase.GetJobUsecase
	UploadUC       *usecase.UploadReferenceUsecase
	TriggerUC      *usecase.TriggerUsecase
	Subscriber     EventSubscriber
	HealthChecks   map[string]HealthCheck
	InternalSecret string
	RateLimit      int
	MaxUploadBytes int64
}

const maxJSONBody = 64 << 10

// NewRouter creates and configures the Gin router with all routes and middleware.
func NewRouter(deps RouterDeps, logger *zap.Logger) *gin.Engine {
	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS())
	router.Use(middleware.Logger(logger))

	// Metrics endpoint (no rate limiting)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	genHandler := NewGenerationHandler(deps.SubmitUC, deps.GetJobUC, deps.UploadUC, deps.MaxUploadBytes, logger)

	v1 := router.Group("/api/v1")
	{
		healthHandler := NewHealthHandler(deps.HealthChecks, logger)
		v1.GET("/health", healthHandler.Health)

		authed := v1.Group("", middleware.RequireUser(), middleware.RateLimiter(deps.RateLimit))
		authed.POST("/references", middleware.BodySizeLimit(genHandler.maxBytes+(1<<20)), genHandler.UploadReference)
		authed.POST("/generations", middleware.BodySizeLimit(maxJSONBody), genHandler.Submit)
		authed.GET("/generations/:id", genHandler.GetByID)

		// WebSocket for real-time updates
		wsHandler := NewWebSocketHandler(deps.Subscriber, logger)
		v1.GET("/events", middleware.RequireUser(), wsHandler.Stream)
	}

	internal := router.Group("/internal", middleware.InternalSecret(deps.InternalSecret))
	{
		internalHandler := NewInternalHandler(deps.TriggerUC, logger)
		internal.POST("/generations/process", middleware.BodySizeLimit(maxJSONBody), internalHandler.Process)
	}

	return router
}
