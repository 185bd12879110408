package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-pos/internal/app"
	"github.com/odyssey-erp/odyssey-pos/internal/observability"
	"github.com/odyssey-erp/odyssey-pos/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-pos/internal/platform/db"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
	"github.com/odyssey-erp/odyssey-pos/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PoolOptions())
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.CacheOptions())
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	services, err := app.NewSalesServices(cfg, pool, redisClient, metrics, logger)
	if err != nil {
		logger.Error("init sales services", slog.Any("error", err))
		os.Exit(1)
	}

	expiryJob := jobs.NewEstimateExpiryJob(services.Estimates, logger, metrics.Jobs())
	integrityJob := jobs.NewLedgerIntegrityJob(services.Invoices, logger, metrics.Jobs(), metrics.Sales())
	receiptJob := jobs.NewReceiptIssuedJob(logger, metrics.Jobs())
	cleanupJob := jobs.NewIdempotencyCleanupJob(shared.NewIdempotencyStore(pool), logger, metrics.Jobs())

	expiryTask, err := jobs.NewEstimatesExpireTask(jobs.EstimatesExpirePayload{})
	if err != nil {
		logger.Error("build expiry task", slog.Any("error", err))
		os.Exit(1)
	}
	integrityTask, err := jobs.NewLedgerIntegrityTask(jobs.LedgerIntegrityPayload{BatchSize: cfg.LedgerIntegrityBatch})
	if err != nil {
		logger.Error("build integrity task", slog.Any("error", err))
		os.Exit(1)
	}
	cleanupTask, err := jobs.NewIdempotencyCleanupTask(jobs.IdempotencyCleanupPayload{Retention: cfg.IdempotencyRetention})
	if err != nil {
		logger.Error("build cleanup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   cfg.AsynqRedisOpt(),
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskEstimatesExpire, Handler: expiryJob.Handle},
			{Type: jobs.TaskLedgerIntegrity, Handler: integrityJob.Handle},
			{Type: jobs.TaskReceiptIssued, Handler: receiptJob.Handle},
			{Type: jobs.TaskIdempotencyCleanup, Handler: cleanupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.EstimateExpiryCron, Task: expiryTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: cfg.LedgerIntegrityCron, Task: integrityTask, Options: []asynq.Option{asynq.MaxRetry(1)}},
			{Spec: cfg.IdempotencyCleanupCron, Task: cleanupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if cfg.WorkerMetricsAddr != "" {
		metricsServer := &http.Server{
			Addr:              cfg.WorkerMetricsAddr,
			Handler:           metrics.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("worker metrics server", slog.Any("error", err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsServer.Shutdown(shutdownCtx)
		}()
	}

	logger.Info("starting worker", slog.Int("concurrency", cfg.WorkerConcurrency))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
