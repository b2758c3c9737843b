package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/tastycreative/genflow/internal/config"
	handler "github.com/tastycreative/genflow/internal/delivery/http"
	"github.com/tastycreative/genflow/internal/publisher"
	"github.com/tastycreative/genflow/internal/realtime"
	"github.com/tastycreative/genflow/internal/repository/postgres"
	"github.com/tastycreative/genflow/internal/storage"
	"github.com/tastycreative/genflow/internal/usecase"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	logger.Info("Starting genflow API server")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	gin.SetMode(cfg.Server.GinMode)

	ctx := context.Background()

	// Connect to PostgreSQL
	dbPool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer dbPool.Close()
	if err := dbPool.Ping(ctx); err != nil {
		logger.Fatal("Failed to ping PostgreSQL", zap.Error(err))
	}
	logger.Info("Connected to PostgreSQL")

	// Connect to Redis
	redisOpts, err := goredis.ParseURL(cfg.Redis.URL)
	if err != nil {
		logger.Fatal("Failed to parse Redis URL", zap.Error(err))
	}
	rdb := goredis.NewClient(redisOpts)
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal("Failed to ping Redis", zap.Error(err))
	}
	logger.Info("Connected to Redis")

	store, err := storage.NewS3Store(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Fatal("Failed to initialize object storage", zap.Error(err))
	}

	pub, err := publisher.NewRabbitMQPublisher(cfg.RabbitMQ.URL, logger)
	if err != nil {
		logger.Fatal("Failed to initialize RabbitMQ publisher", zap.Error(err))
	}
	defer pub.Close()
	logger.Info("Connected to RabbitMQ")

	jobRepo := postgres.NewPostgresJobRepository(dbPool)
	defaults := usecase.GenerationDefaults{Model: cfg.Synthesis.DefaultModel, Size: cfg.Synthesis.DefaultSize}

	router := handler.NewRouter(handler.RouterDeps{
		SubmitUC:   usecase.NewSubmitGenerationUsecase(jobRepo, pub, defaults, logger),
		GetJobUC:   usecase.NewGetJobUsecase(jobRepo, logger),
		UploadUC:   usecase.NewUploadReferenceUsecase(store, cfg.Server.MaxUploadBytes, logger),
		TriggerUC:  usecase.NewTriggerUsecase(jobRepo, pub, logger),
		Subscriber: realtime.NewRedisSubscriber(rdb, logger),
		HealthChecks: map[string]handler.HealthCheck{
			"postgres": dbPool.Ping,
			"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		},
		InternalSecret: cfg.Internal.Secret,
		RateLimit:      cfg.Server.RateLimit,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
	}, logger)

	if cfg.Internal.Secret == "" {
		logger.Warn("INTERNAL_API_SECRET is not set; internal routes will reject every request")
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("API server listening", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("API server stopped")
}
