package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/frostline-foods/frostline/internal/analytics"
	"github.com/frostline-foods/frostline/internal/app"
	"github.com/frostline-foods/frostline/internal/audit"
	"github.com/frostline-foods/frostline/internal/inventory"
	"github.com/frostline-foods/frostline/internal/masterdata"
	"github.com/frostline-foods/frostline/internal/platform/db"
	"github.com/frostline-foods/frostline/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN, db.Options{
		MaxConns:    cfg.PGMaxConns,
		MinConns:    cfg.PGMinConns,
		PingTimeout: cfg.PGPingTimeout,
	})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
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

	loc := cfg.Location()

	masterRepo := masterdata.NewRepository(pool)
	masterService := masterdata.NewService(masterRepo)
	mainBranch, err := masterService.ResolveMainBranch(ctx, cfg.MainBranchCode)
	if err != nil {
		logger.Error("resolve main branch", slog.String("code", cfg.MainBranchCode), slog.Any("error", err))
		os.Exit(1)
	}

	analyticsCache := analytics.NewCache(redisClient, cfg.AnalyticsCacheTTL)
	auditRecorder := audit.NewRecorder(audit.NewRepository(pool))

	inventoryService := inventory.NewService(
		inventory.NewRepository(pool),
		masterdata.NewProductLookup(masterRepo),
		audit.NewInventoryTrail(auditRecorder),
		analyticsCache,
		logger,
		inventory.ServiceConfig{Location: loc, MainBranchID: mainBranch.ID},
	)

	sweepTask, err := jobs.NewExpirySweepTask(time.Time{})
	if err != nil {
		logger.Error("build sweep task", slog.Any("error", err))
		os.Exit(1)
	}

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: redisOpts,
		Logger:    logger,
		Location:  loc,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskExpirySweep, Handler: jobs.NewExpirySweepHandler(inventoryService, logger)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.ExpirySweepCron, Task: sweepTask},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting worker",
		slog.String("sweep_cron", cfg.ExpirySweepCron),
		slog.Int64("main_branch_id", mainBranch.ID))
	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
