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

	"github.com/frostline-foods/frostline/internal/analytics"
	"github.com/frostline-foods/frostline/internal/app"
	"github.com/frostline-foods/frostline/internal/audit"
	"github.com/frostline-foods/frostline/internal/bulkimport"
	"github.com/frostline-foods/frostline/internal/inventory"
	"github.com/frostline-foods/frostline/internal/masterdata"
	"github.com/frostline-foods/frostline/internal/observability"
	"github.com/frostline-foods/frostline/internal/platform/db"
	"github.com/frostline-foods/frostline/jobs"
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
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	loc := cfg.Location()

	masterRepo := masterdata.NewRepository(pool)
	masterService := masterdata.NewService(masterRepo)
	mainBranch, err := masterService.ResolveMainBranch(ctx, cfg.MainBranchCode)
	if err != nil {
		logger.Error("resolve main branch", slog.String("code", cfg.MainBranchCode), slog.Any("error", err))
		os.Exit(1)
	}

	analyticsCache := analytics.NewCache(redisClient, cfg.AnalyticsCacheTTL)
	if err := analyticsCache.ListenForInvalidation(ctx); err != nil {
		logger.Warn("cache invalidation listener", slog.Any("error", err))
	}
	analyticsService := analytics.NewService(analytics.NewRepository(pool), analyticsCache, loc)

	auditRepo := audit.NewRepository(pool)
	auditRecorder := audit.NewRecorder(auditRepo)

	inventoryService := inventory.NewService(
		inventory.NewRepository(pool),
		masterdata.NewProductLookup(masterRepo),
		audit.NewInventoryTrail(auditRecorder),
		analyticsCache,
		logger,
		inventory.ServiceConfig{Location: loc, MainBranchID: mainBranch.ID},
	)
	importService := bulkimport.NewService(inventoryService, logger, loc)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobsClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(asynq.NewInspector(redisOpts), jobsClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		InventoryHandler:  inventory.NewHandler(logger, inventoryService, metrics),
		ImportHandler:     bulkimport.NewHandler(logger, importService, metrics),
		AnalyticsHandler:  analytics.NewHandler(logger, analyticsService),
		AuditHandler:      audit.NewHandler(logger, audit.NewService(auditRepo)),
		MasterDataHandler: masterdata.NewHandler(logger, masterService),
		JobHandler:        jobHandler,
		Metrics:           metrics,
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
