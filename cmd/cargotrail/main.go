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
	"github.com/joho/godotenv"

	"github.com/cargotrail/cargotrail/internal/app"
	"github.com/cargotrail/cargotrail/internal/brandaccess"
	"github.com/cargotrail/cargotrail/internal/container"
	"github.com/cargotrail/cargotrail/internal/masterdata"
	"github.com/cargotrail/cargotrail/internal/observability"
	"github.com/cargotrail/cargotrail/internal/platform/cache"
	"github.com/cargotrail/cargotrail/internal/platform/db"
	"github.com/cargotrail/cargotrail/internal/po"
	"github.com/cargotrail/cargotrail/internal/reports"
	"github.com/cargotrail/cargotrail/internal/shared"
	"github.com/cargotrail/cargotrail/internal/shipment"
	"github.com/cargotrail/cargotrail/internal/status"
	"github.com/cargotrail/cargotrail/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	_ = godotenv.Load()

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

	redisClient, err := cache.NewRedis(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "cargotrail_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	auditLogger := shared.NewAuditLogger(pool)

	metrics := observability.NewMetrics()

	accessRepo := brandaccess.NewRepository(pool)
	accessService := brandaccess.NewService(accessRepo)
	access := brandaccess.Middleware{Service: accessService, Logger: logger}

	statusRepo := status.NewRepository(pool)
	statusService := status.NewService(statusRepo, logger)
	statusHandler := status.NewHandler(logger, statusService, access)

	poRepo := po.NewRepository(pool)
	poService := po.NewService(poRepo, auditLogger, logger)
	poHandler := po.NewHandler(logger, poService, access)

	shipmentRepo := shipment.NewRepository(pool)
	shipmentService := shipment.NewService(shipmentRepo, statusService, auditLogger, logger)
	shipmentHandler := shipment.NewHandler(logger, shipmentService, access)

	containerRepo := container.NewRepository(pool)
	containerService := container.NewService(containerRepo, statusService, auditLogger, logger)
	containerHandler := container.NewHandler(logger, containerService, access)

	statusService.Register(
		status.ShipmentTransitCascade{Containers: containerRepo, Writer: statusService},
		status.AllDeliveredCascade{Containers: containerRepo, Ledger: statusRepo, Writer: statusService},
	)

	reportsRepo := reports.NewRepository(pool)
	reportsCache := reports.NewCache(redisClient, cfg.ReportCacheTTL)
	reportsService := reports.NewService(reportsRepo, reportsCache)
	reportsHandler := reports.NewHandler(logger, reportsService, access)
	if err := reportsCache.ListenForInvalidation(ctx, ""); err != nil {
		logger.Warn("reports invalidation listener", slog.Any("error", err))
	}

	statusService.Observe(func(kind status.Kind) {
		metrics.ObserveStatusWrite(string(kind))
		if err := reportsService.Invalidate(context.Background()); err != nil {
			logger.Warn("report cache invalidation", slog.Any("error", err))
		}
	})
	poService.ObserveImports(func(rows int) {
		metrics.ObserveImportRows(rows)
	})

	masterRepo := masterdata.NewRepository(pool)
	masterService := masterdata.NewService(masterRepo)
	masterHandler := masterdata.NewHandler(logger, masterService, access)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Config:     cfg,
		Logger:     logger,
		Sessions:   sessionManager,
		CSRF:       csrfManager,
		Metrics:    metrics,
		Access:     access,
		Status:     statusHandler,
		POs:        poHandler,
		Shipments:  shipmentHandler,
		Containers: containerHandler,
		Reports:    reportsHandler,
		MasterData: masterHandler,
		Jobs:       jobHandler,
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
