package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/stammy5/ampere-business-management-sub000/internal/app"
	"github.com/stammy5/ampere-business-management-sub000/internal/documents/summary"
	"github.com/stammy5/ampere-business-management-sub000/internal/platform/db"
	"github.com/stammy5/ampere-business-management-sub000/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}

	summaryCache := summary.NewCache(redisClient, cfg.SummaryCacheTTL)

	integrityChecker := jobs.NewIntegrityChecker(pool, logger, summaryCache.Bump)
	gapScanner := jobs.NewGapScanner(pool, logger)

	integrityTask, err := jobs.NewTotalsIntegrityTask(jobs.TotalsIntegrityPayload{})
	if err != nil {
		logger.Error("build totals integrity task", slog.Any("error", err))
		os.Exit(1)
	}
	gapScanTask, err := jobs.NewSequenceGapScanTask(jobs.SequenceGapScanPayload{})
	if err != nil {
		logger.Error("build sequence gap scan task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTotalsIntegrity, Handler: integrityChecker.HandleTotalsIntegrityTask},
			{Type: jobs.TaskSequenceGapScan, Handler: gapScanner.HandleSequenceGapScanTask},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "15 1 * * *", Task: integrityTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "45 1 * * *", Task: gapScanTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
