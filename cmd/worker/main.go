package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/mediakit/backend/internal/config"
	"github.com/mediakit/backend/internal/database"
	"github.com/mediakit/backend/internal/repository"
	"github.com/mediakit/backend/internal/retention"
)

func main() {
	cfg := config.Load()

	log.Printf("[worker] Starting MediaKit retention worker (env=%s)", cfg.Env)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbCfg := database.DefaultConfig(cfg.DatabaseURL)
	db, err := database.New(ctx, dbCfg)
	if err != nil {
		log.Fatalf("[worker] Failed to connect to database: %v", err)
	}
	defer db.Close()

	counterRepo := repository.NewCounterRepository(db)
	pruner := retention.NewPruner(counterRepo, cfg.RetentionDays)

	scheduler, err := retention.NewScheduler(pruner, cfg.PruneSchedule)
	if err != nil {
		log.Fatalf("[worker] Failed to build schedule: %v", err)
	}

	// Run one pass at startup so a crashed worker catches up on restart.
	if err := pruner.Run(ctx); err != nil {
		log.Printf("[worker] Startup retention pass failed: %v", err)
	}

	scheduler.Start()
	log.Printf("[worker] Pruning counters older than %d days on schedule %q", cfg.RetentionDays, cfg.PruneSchedule)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[worker] Shutting down...")
	scheduler.Stop()
	log.Println("[worker] Stopped")
}
