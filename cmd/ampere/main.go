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
	"github.com/redis/go-redis/v9"

	"github.com/stammy5/ampere-business-management-sub000/internal/app"
	"github.com/stammy5/ampere-business-management-sub000/internal/documents/invoices"
	"github.com/stammy5/ampere-business-management-sub000/internal/documents/purchaseorders"
	"github.com/stammy5/ampere-business-management-sub000/internal/documents/quotations"
	"github.com/stammy5/ampere-business-management-sub000/internal/documents/summary"
	"github.com/stammy5/ampere-business-management-sub000/internal/observability"
	"github.com/stammy5/ampere-business-management-sub000/internal/platform/db"
	"github.com/stammy5/ampere-business-management-sub000/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN)
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

	quotationRepo := quotations.NewRepository(pool)
	quotationService := quotations.NewService(quotationRepo, logger, cfg.DefaultTaxPercent, cfg.NumberingMaxRetries)
	quotationHandler := quotations.NewHandler(logger, quotationService)

	invoiceRepo := invoices.NewRepository(pool)
	invoiceService := invoices.NewService(invoiceRepo, logger, cfg.DefaultTaxPercent, cfg.NumberingMaxRetries)
	invoiceHandler := invoices.NewHandler(logger, invoiceService)

	purchaseOrderRepo := purchaseorders.NewRepository(pool)
	purchaseOrderService := purchaseorders.NewService(purchaseOrderRepo, logger, cfg.DefaultTaxPercent, cfg.NumberingMaxRetries)
	purchaseOrderHandler := purchaseorders.NewHandler(logger, purchaseOrderService)

	summaryCache := summary.NewCache(redisClient, cfg.SummaryCacheTTL)
	summaryService := summary.NewService(quotationRepo, invoiceRepo, purchaseOrderRepo, summaryCache, logger)
	summaryHandler := summary.NewHandler(logger, summaryService)

	metrics := observability.NewMetrics()
	quotationService.ObserveNumberConflicts(func() { metrics.RecordNumberConflict("quotation") })
	invoiceService.ObserveNumberConflicts(func() { metrics.RecordNumberConflict("invoice") })
	purchaseOrderService.ObserveNumberConflicts(func() { metrics.RecordNumberConflict("purchase_order") })

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, jobClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:               logger,
		Config:               cfg,
		QuotationHandler:     quotationHandler,
		InvoiceHandler:       invoiceHandler,
		PurchaseOrderHandler: purchaseOrderHandler,
		SummaryHandler:       summaryHandler,
		JobHandler:           jobHandler,
		Metrics:              metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
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
