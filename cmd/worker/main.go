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

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/tastycreative/genflow/internal/background"
	"github.com/tastycreative/genflow/internal/config"
	amqpdelivery "github.com/tastycreative/genflow/internal/delivery/amqp"
	"github.com/tastycreative/genflow/internal/domain"
	"github.com/tastycreative/genflow/internal/pool"
	"github.com/tastycreative/genflow/internal/realtime"
	"github.com/tastycreative/genflow/internal/repository/postgres"
	redisrepo "github.com/tastycreative/genflow/internal/repository/redis"
	"github.com/tastycreative/genflow/internal/storage"
	"github.com/tastycreative/genflow/internal/synthesis"
	"github.com/tastycreative/genflow/internal/usecase"
)

const backgroundTaskTimeout = 30 * time.Second

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	logger.Info("Starting genflow generation worker")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}
	if cfg.Synthesis.APIKey == "" {
		logger.Fatal("SEEDREAM_API_KEY is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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
		logger.Fatal("Invalid Redis URL", zap.Error(err))
	}
	redisClient := goredis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("Connected to Redis")

	store, err := storage.NewS3Store(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Fatal("Failed to initialize object storage", zap.Error(err))
	}

	runner := background.NewRunner(backgroundTaskTimeout, logger)

	processUC := usecase.NewProcessGenerationUsecase(usecase.ProcessGenerationDeps{
		Jobs:        postgres.NewPostgresJobRepository(dbPool),
		Artifacts:   postgres.NewPostgresArtifactRepository(dbPool),
		Folders:     postgres.NewPostgresFolderRepository(dbPool),
		Idempotency: redisrepo.NewRedisIdempotencyStore(redisClient),
		Store:       store,
		Synthesizer: synthesis.NewSeedreamClient(cfg.Synthesis.BaseURL, cfg.Synthesis.APIKey, nil, logger),
		Notifier:    realtime.NewRedisNotifier(redisClient, logger),
		Runner:      runner,
	}, logger, usecase.WithOutputFormat(cfg.Storage.OutputFormat, cfg.Storage.WebPQuality))

	jobsChan := make(chan *domain.JobMessage, cfg.Worker.PoolSize)

	consumer, err := amqpdelivery.NewConsumer(cfg.RabbitMQ.URL, cfg.Worker.PoolSize, jobsChan, logger)
	if err != nil {
		logger.Fatal("Failed to initialize AMQP consumer", zap.Error(err))
	}
	defer consumer.Close()
	logger.Info("Connected to RabbitMQ")

	workerPool := pool.NewWorkerPool(cfg.Worker.PoolSize, jobsChan, processUC, logger)
	workerPool.Start(ctx)

	go func() {
		if err := consumer.Start(ctx); err != nil {
			logger.Error("AMQP consumer error", zap.Error(err))
			cancel()
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Worker.MetricsPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("Metrics server listening", zap.String("addr", metricsSrv.Addr))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server error", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	logger.Info("Shutting down worker...")
	cancel()

	// In-flight jobs finish, then their cleanup and final events drain.
	workerPool.Stop()
	runner.Wait()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	_ = metricsSrv.Shutdown(shutdownCtx)

	logger.Info("Worker stopped")
}
