package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	"github.com/prodreports/dispatch-ingestion/internal/config"
	"github.com/prodreports/dispatch-ingestion/internal/database"
	"github.com/prodreports/dispatch-ingestion/internal/logger"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: could not load .env file: %v", err)
	}

	cfg, err := config.New()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zapLogger, err := logger.New(cfg.LogLevel, cfg.LogFormat, "setup")
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zapLogger.Sync()

	ctx := context.Background()
	zapLogger.Info("starting database setup")

	store, err := database.Open(ctx, cfg.DatabaseURL, zapLogger)
	if err != nil {
		zapLogger.Fatal("unable to connect to database", zap.Error(err))
	}
	defer store.Close()

	zapLogger.Info("creating dispatch_data table")
	if err := store.CreateTables(ctx); err != nil {
		zapLogger.Fatal("error creating dispatch_data table", zap.Error(err))
	}

	if err := cfg.EnsureUploadFolder(); err != nil {
		zapLogger.Fatal("error creating upload folder", zap.Error(err))
	}

	zapLogger.Info("database setup finished successfully", zap.String("upload_folder", cfg.UploadFolder))
}
