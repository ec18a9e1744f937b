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

	"github.com/synthome-dev/synthome/internal/credentials"
	"github.com/synthome-dev/synthome/internal/httpapi"
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
		logger.Fatal().Err(err).Msg("api: db connection failed")
	}
	defer pool.Close()

	runner := infra.NewSQLRunner(pool, logger)
	executions := store.NewPostgresStore(runner)

	media, err := newMediaStore(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: failed to configure storage")
	}

	jobQueue, err := newJobQueue(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: failed to configure queue")
	}

	engineMetrics := metrics.NewDefault()
	models := registry.NewDefault()
	httpClient := &http.Client{Timeout: 60 * time.Second}

	orch, err := orchestrator.New(orchestrator.Options{
		Store:     executions,
		Queue:     jobQueue,
		Registry:  models,
		Providers: provider.NewFactory(cfg, &logger, httpClient),
		Media:     media,
		Notifier:  notify.NewNotifier(httpClient, &logger),
		Metrics:   engineMetrics,
		Usage:     usage.NewPostgresRecorder(runner),
		Config:    cfg,
		Logger:    logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("api: failed to build orchestrator")
	}

	go func() {
		if err := orch.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("api: orchestrator stopped with error")
		}
	}()

	app := &httpapi.App{
		Store:       executions,
		Registry:    models,
		Callback:    orch,
		Credentials: credentials.NewPostgresStore(runner),
		Metrics:     engineMetrics,
		Logger:      logger,
	}
	routerOpts := httpapi.RouterOptions{RateLimitPerMin: cfg.RateLimitPerMin}
	if cfg.StorageBackend == "filesystem" {
		routerOpts.StaticDir = cfg.StoragePath
	}
	server := infra.NewHTTPServer(cfg, httpapi.NewRouter(app, routerOpts))

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}

func newMediaStore(cfg *infra.Config) (storage.Store, error) {
	if cfg.StorageBackend == "s3" {
		return storage.NewS3Store(cfg.S3Bucket, cfg.S3Region)
	}
	return storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
}

func newJobQueue(cfg *infra.Config) (queue.Queue, error) {
	if cfg.RedisURL == "" {
		return queue.NewMemoryQueue(), nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	return queue.NewRedisQueue(redis.NewClient(opts), ""), nil
}
