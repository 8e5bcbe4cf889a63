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
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/procura-erp/procura/internal/app"
	"github.com/procura-erp/procura/internal/grn"
	"github.com/procura-erp/procura/internal/invoice"
	"github.com/procura-erp/procura/internal/masterdata"
	"github.com/procura-erp/procura/internal/observability"
	"github.com/procura-erp/procura/internal/purchaseorder"
	"github.com/procura-erp/procura/internal/rfp"
	"github.com/procura-erp/procura/internal/shared"
	"github.com/procura-erp/procura/jobs"
	"github.com/procura-erp/procura/report"
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

	pool, err := pgxpool.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	auditLogger := shared.NewAuditLogger(pool)
	approvalRecorder := shared.NewApprovalRecorder(pool, logger)
	idempotencyStore := shared.NewIdempotencyStore(pool)

	rfpRepo := rfp.NewRepository(pool)

	poRepo := purchaseorder.NewRepository(pool)
	poService := purchaseorder.NewService(poRepo, rfpRepo, approvalRecorder, auditLogger, idempotencyStore)

	grnRepo := grn.NewRepository(pool)
	grnService := grn.NewService(grnRepo, poService, approvalRecorder, auditLogger)

	tolerance := decimal.NewFromFloat(cfg.MatchTolerance)
	invoiceRepo := invoice.NewRepository(pool)
	invoiceService := invoice.NewService(invoiceRepo, poService, grnService, approvalRecorder, auditLogger, tolerance)

	masterRepo := masterdata.NewRepository(pool)
	masterCache := masterdata.NewListCache(redisClient, cfg.ListCacheTTL)
	masterService := masterdata.NewService(masterRepo, masterCache, auditLogger)

	pdfClient := report.NewClient(cfg.GotenbergURL)
	if err := pdfClient.Ping(ctx); err != nil {
		logger.Warn("gotenberg ping", slog.Any("error", err))
	}

	poHandler := purchaseorder.NewHandler(logger, poService, pdfClient, metrics)
	grnHandler := grn.NewHandler(logger, grnService, metrics)
	invoiceHandler := invoice.NewHandler(logger, invoiceService, metrics)
	masterHandler := masterdata.NewHandler(logger, masterService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = jobClient.Close() }()
	jobHandler := jobs.NewHandler(inspector, jobClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:               logger,
		Config:               cfg,
		PurchaseOrderHandler: poHandler,
		GRNHandler:           grnHandler,
		InvoiceHandler:       invoiceHandler,
		MasterDataHandler:    masterHandler,
		JobHandler:           jobHandler,
		Pool:                 pool,
		Metrics:              metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr), slog.String("env", cfg.AppEnv))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
	}
	logger.Info("server stopped")
}
