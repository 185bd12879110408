package main

import (
	"context"
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
	"github.com/odyssey-erp/odyssey-pos/internal/sales/estimates"
	"github.com/odyssey-erp/odyssey-pos/internal/sales/invoices"
	"github.com/odyssey-erp/odyssey-pos/internal/sales/receipts"
	"github.com/odyssey-erp/odyssey-pos/internal/sales/returns"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
	"github.com/odyssey-erp/odyssey-pos/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.PoolOptions())
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.CacheOptions())
	if err != nil {
		if cfg.ReferenceBackend == app.ReferenceBackendRedis {
			logger.Error("connect redis", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	services, err := app.NewSalesServices(cfg, dbpool, redisClient, metrics, logger)
	if err != nil {
		logger.Error("init sales services", slog.Any("error", err))
		os.Exit(1)
	}

	redisOpts := cfg.AsynqRedisOpt()
	jobClient := jobs.NewClient(redisOpts, logger)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()
	services.Receipts.WithNotifier(jobClient)

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("jobs inspector close", slog.Any("error", err))
		}
	}()

	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		InvoicesHandler:  invoices.NewHandler(logger, services.Invoices, idempotencyStore),
		ReceiptsHandler:  receipts.NewHandler(logger, services.Receipts),
		EstimatesHandler: estimates.NewHandler(logger, services.Estimates),
		ReturnsHandler:   returns.NewHandler(logger, services.Returns),
		JobHandler:       jobs.NewHandler(inspector, logger),
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server",
			slog.String("addr", cfg.AppAddr),
			slog.String("reference_backend", cfg.ReferenceBackend))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
