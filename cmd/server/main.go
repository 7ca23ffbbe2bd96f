package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/infinity-samurai/food-ai/internal/blob"
	"github.com/infinity-samurai/food-ai/internal/config"
	"github.com/infinity-samurai/food-ai/internal/handlers"
	"github.com/infinity-samurai/food-ai/internal/notifier"
	"github.com/infinity-samurai/food-ai/internal/storage"
	"github.com/infinity-samurai/food-ai/internal/version"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	if err := cfg.ValidateStorage(); err != nil {
		log.Fatal(err)
	}

	db, err := storage.Open(cfg.SQLitePath)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	jobs := storage.NewJobRepository(db)

	var (
		store blob.Store
		s3    *blob.S3
	)
	if cfg.StorageDriver == "s3" {
		s3, err = blob.NewS3(context.Background(), cfg.S3Bucket, cfg.S3Prefix, cfg.AWSRegion)
		if err != nil {
			log.Fatal(err)
		}
		store = s3
	} else {
		store, err = blob.NewLocalFS(cfg.LocalUploadDir)
		if err != nil {
			log.Fatal(err)
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Validator = handlers.NewRequestValidator()

	jobHandler := handlers.NewJobHandler(jobs, notifier.New(jobs, notifier.DefaultInterval))
	uploadHandler := handlers.NewUploadHandler(store, s3)

	e.GET("/health", handlers.Health)
	e.POST("/v1/uploads/local", uploadHandler.UploadLocal)
	e.POST("/v1/uploads/from-url", uploadHandler.UploadFromURL)
	e.POST("/v1/uploads/presign-put", uploadHandler.PresignPut)
	e.POST("/v1/analyze", jobHandler.Analyze)
	e.GET("/v1/jobs", jobHandler.List)
	e.GET("/v1/jobs/stats", jobHandler.Stats)
	e.GET("/v1/jobs/:id", jobHandler.Get)
	e.GET("/v1/jobs/:id/events", jobHandler.Events)

	log.Printf("Starting food-ai API v%s on port %s (storage=%s)", version.Version, cfg.Port, cfg.StorageDriver)
	if err := e.Start(":" + cfg.Port); err != nil {
		log.Fatal(err)
	}
}
