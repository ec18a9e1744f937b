package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/synthome-dev/synthome/internal/infra"
	"github.com/synthome-dev/synthome/internal/metrics"
	"github.com/synthome-dev/synthome/internal/notify"
	"github.com/synthome-dev/synthome/internal/orchestrator"
	"github.com/synthome-dev/synthome/internal/provider"
	"github.com/synthome-dev/synthome/internal/queue"
	"github.com/synthome-dev/synthome/internal/registry"
	"github.com/synthome-dev/synthome/internal/storage"
	"github.com/synthome-dev/synthome/internal/store"
	"github.com/synthome-dev/synthome/internal/usage"
)

// The worker runs the dispatch scan and job execution without the HTTP
// surface. Point it at the same database and Redis queue as the API to move
// provider traffic off the serving path.
func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()

	runner := infra.NewSQLRunner(pool, logger)

	var media storage.Store
	if cfg.StorageBackend == "s3" {
		media, err = storage.NewS3Store(cfg.S3Bucket, cfg.S3Region)
	} else {
		media, err = storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
	}
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure storage")
	}

	var jobQueue queue.Queue
	if cfg.RedisURL == "" {
		jobQueue = queue.NewMemoryQueue()
	} else {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("worker: invalid REDIS_URL")
		}
		jobQueue = queue.NewRedisQueue(redis.NewClient(opts), "")
	}

	httpClient := &http.Client{Timeout: 60 * time.Second}
	orch, err := orchestrator.New(orchestrator.Options{
		Store:     store.NewPostgresStore(runner),
		Queue:     jobQueue,
		Registry:  registry.NewDefault(),
		Providers: provider.NewFactory(cfg, &logger, httpClient),
		Media:     media,
		Notifier:  notify.NewNotifier(httpClient, &logger),
		Metrics:   metrics.NewDefault(),
		Usage:     usage.NewPostgresRecorder(runner),
		Config:    cfg,
		Logger:    logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to build orchestrator")
	}

	logger.Info().Int("concurrency", cfg.WorkerConcurrency).Msg("worker: started")
	if err := orch.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}
	logger.Info().Msg("worker: stopped")
}
