package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"slamonitor_backend/internal/decision"
	"slamonitor_backend/internal/messaging"
	"slamonitor_backend/internal/notification"
	"slamonitor_backend/internal/opportunity"
	"slamonitor_backend/internal/opportunity/source"
	"slamonitor_backend/internal/orchestrator"
	"slamonitor_backend/internal/runtrack"
	"slamonitor_backend/internal/scheduler"
	"slamonitor_backend/internal/settings"
	"slamonitor_backend/platform/config"
	"slamonitor_backend/platform/db"
	"slamonitor_backend/platform/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting monitor", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	version, err := db.RunMigrations(ctx, cfg, "migrations")
	if err != nil {
		log.Error("failed to run migrations", "error", err)
		panic("failed to run migrations: " + err.Error())
	}
	log.Info("database schema ready", "version", version)

	settingsRepo := settings.NewRepository(pool)
	if err := settingsRepo.SeedThresholds(ctx, cfg.GetThresholdSeedPath()); err != nil {
		log.Error("failed to seed thresholds", "error", err)
		panic("failed to seed thresholds: " + err.Error())
	}

	sourceClient := source.New(cfg, log)
	cacheRepo := opportunity.NewRepository(pool)
	strategy := opportunity.NewDataStrategy(sourceClient, cacheRepo, true, log)

	var advisor decision.AdvisorClient
	if cfg.IsAIConfigured() {
		adv, err := decision.NewAdvisor(cfg, log)
		if err != nil {
			log.Error("failed to initialize decision advisor, continuing rule-only", "error", err)
		} else {
			advisor = adv
		}
	}
	engine := decision.NewEngine(decision.Mode(cfg.GetDecisionMode()), advisor, log)

	taskRepo := notification.NewRepository(pool)
	chatClient := messaging.NewClient(cfg, log)
	tracker := runtrack.NewTracker(runtrack.NewRepository(pool), log)

	orch := orchestrator.New(settingsRepo, strategy, engine, taskRepo, chatClient, tracker, log)
	manager := notification.NewManager(taskRepo, chatClient, orch, log)
	if stylist := decision.NewStylist(cfg); stylist != nil {
		manager.SetAIFormatter(stylist)
	}
	orch.SetNotifier(manager)

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		panic("failed to initialize scheduler client: " + err.Error())
	}
	defer func() { _ = client.Close() }()

	trigger := scheduler.NewMonitorTrigger(client, settingsRepo, log)
	go trigger.Run(ctx)

	cleanupInterval := getDurationEnv("RUN_HISTORY_CLEANUP_INTERVAL", time.Hour)
	retention := time.Duration(getPositiveIntEnv("RUN_HISTORY_RETENTION_DAYS", 30)) * 24 * time.Hour
	cleanup := scheduler.NewRunHistoryCleanup(runtrack.NewRepository(pool), log, cleanupInterval, retention)
	go cleanup.Run(ctx)

	worker, err := scheduler.NewWorker(cfg, orch, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}

func getPositiveIntEnv(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}

	return parsed
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}

	return parsed
}
