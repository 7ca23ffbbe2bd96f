package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/infinity-samurai/food-ai/internal/blob"
	"github.com/infinity-samurai/food-ai/internal/config"
	"github.com/infinity-samurai/food-ai/internal/nutrition"
	"github.com/infinity-samurai/food-ai/internal/storage"
	"github.com/infinity-samurai/food-ai/internal/vision"
	"github.com/infinity-samurai/food-ai/internal/worker"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := cfg.ValidateStorage(); err != nil {
		log.Fatal(err)
	}

	db, err := storage.Open(cfg.SQLitePath)
	if err != nil {
		log.Fatalf("failed to open job store: %v", err)
	}
	defer db.Close()

	jobs := storage.NewJobRepository(db)

	var store blob.Store
	if cfg.StorageDriver == "s3" {
		store, err = blob.NewS3(context.Background(), cfg.S3Bucket, cfg.S3Prefix, cfg.AWSRegion)
	} else {
		store, err = blob.NewLocalFS(cfg.LocalUploadDir)
	}
	if err != nil {
		log.Fatalf("failed to initialise storage: %v", err)
	}

	catalog, err := nutrition.LoadCatalog(cfg.NutritionDBPath)
	if err != nil {
		log.Fatalf("failed to load nutrition catalog: %v", err)
	}

	gate := vision.NewHTTPGate(cfg.GateURL)
	describer := vision.NewHTTPDescriber(cfg.DescriberURL)

	logger.Info("worker starting",
		"sqlite", cfg.SQLitePath,
		"storage", cfg.StorageDriver,
		"gate", cfg.GateURL,
		"describer", cfg.DescriberURL,
		"use_describer", cfg.UseDescriber,
		"fast_mode", cfg.FastMode,
		"catalog_entries", len(catalog),
		"concurrency", cfg.WorkerConcurrency,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w := worker.New(cfg, jobs, store, gate, describer, catalog, logger)
	w.Run(ctx)

	logger.Info("worker stopped")
}
