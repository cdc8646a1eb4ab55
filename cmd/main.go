package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"careplan/internal/api"
	"careplan/internal/audit"
	"careplan/internal/cache"
	"careplan/internal/careactivity"
	"careplan/internal/config"
	"careplan/internal/daemon"
	"careplan/internal/database"
	"careplan/internal/database/migrations"
	"careplan/internal/kpi"
	"careplan/internal/logger"
	"careplan/internal/middleware"
	"careplan/internal/monitoring"
	"careplan/internal/occupation"
	"careplan/internal/planning"
	"careplan/internal/storage"
	"careplan/internal/upload"
	"careplan/internal/user"
	"careplan/internal/validator"

	"github.com/gofiber/fiber/v2"
)

func main() {
	if err := run(context.Background()); err != nil {
		slog.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Telemetry first, so the log bridge has a provider to export to.
	telemetry, err := monitoring.NewOpenTelemetry(cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shutdown telemetry", "error", err)
		}
	}()

	log := logger.New(cfg)
	log.Info("Starting careplan API", "environment", cfg.Server.Environment)

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := migrations.Up(db.DB); err != nil {
			return err
		}
	}

	appCache := cache.Disabled()
	if cfg.Redis.Enabled {
		client := cache.NewRedisClient(cfg.Redis)
		defer client.Close()
		appCache = cache.New(log, client, cfg.Redis.Prefix)
		if err := appCache.Ping(ctx); err != nil {
			log.Warn("Redis is unreachable, requests fall through to the database until it recovers", "addr", cfg.Redis.Addr, "error", err)
		}
	}

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	auditor := audit.NewAuditor(log, db)
	userManager := user.NewManager(log, db, &auditor)
	occupationManager := occupation.NewManager(log, db, &auditor, appCache)
	careActivityManager := careactivity.NewManager(log, db, &auditor, store)
	uploadManager := upload.NewManager(log, db, &auditor, appCache, store, telemetry)
	planningManager := planning.NewManager(log, db, &userManager, telemetry)
	kpiManager := kpi.NewManager(log, db, appCache, cfg.KPI)

	authenticator, err := middleware.NewAuthenticator(log, cfg.Auth, &userManager)
	if err != nil {
		return err
	}

	var rateLimitStorage fiber.Storage
	if cfg.Server.Environment != config.EnvironmentTest {
		rateLimitStorage = middleware.NewRateLimitStorage(cfg.Database)
		defer rateLimitStorage.Close()
	}

	app := api.New(api.Options{
		Config:           cfg,
		Logger:           log,
		Database:         db,
		Cache:            appCache,
		Validator:        validator.New(),
		Authenticator:    authenticator,
		RateLimitStorage: rateLimitStorage,
		Users:            &userManager,
		Occupations:      &occupationManager,
		CareActivities:   &careActivityManager,
		Uploads:          &uploadManager,
		Planning:         &planningManager,
		KPI:              &kpiManager,
	})

	daemons := daemon.NewDaemonManager(log)
	daemons.Add("cleanup", daemon.CleanupTask(db, log, daemon.CleanupConfig{
		Interval:         cfg.Daemon.CleanupInterval,
		SessionRetention: cfg.Daemon.SessionRetention,
		AuditRetention:   cfg.Daemon.AuditRetention,
	}))
	log.Info("Starting supervised daemons...")
	daemons.Start(ctx)

	serverErr := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server...", "addr", cfg.Server.Addr())
		serverErr <- app.Listen(cfg.Server.Addr())
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	}

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		log.Error("Error shutting down HTTP server", "error", err)
	}

	daemons.Wait()
	log.Info("All daemons stopped")
	return nil
}
