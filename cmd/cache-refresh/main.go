// Command cache-refresh forces a one-off refresh of the opportunity cache
// from the reporting source, outside the monitor loop.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"slamonitor_backend/internal/opportunity"
	"slamonitor_backend/internal/opportunity/source"
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	cache := opportunity.NewRepository(pool)
	strategy := opportunity.NewDataStrategy(source.New(cfg, log), cache, true, log)

	opps, err := strategy.RefreshCache(ctx)
	if err != nil {
		log.Error("cache refresh failed", "error", err)
		os.Exit(1)
	}

	cached, err := cache.Count(ctx)
	if err != nil {
		log.Error("cache count failed", "error", err)
		os.Exit(1)
	}

	log.Info("cache refreshed", "fetched", len(opps), "cached", cached)
}
