package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prodreports/dispatch-ingestion/internal/config"
	"github.com/prodreports/dispatch-ingestion/internal/database"
	"github.com/prodreports/dispatch-ingestion/internal/ingestion"
	"github.com/prodreports/dispatch-ingestion/internal/logger"
	"github.com/prodreports/dispatch-ingestion/internal/models"
	"go.uber.org/zap"
)

const usage = "usage: data_ingestion <file-or-folder> [file-type]"

func setup(ctx context.Context) (string, *models.FileType, *ingestion.IngestionService, func(), error) {
	if len(os.Args) < 2 {
		return "", nil, nil, nil, errors.New(usage)
	}
	filesPath := os.Args[1]

	var fileType *models.FileType
	if len(os.Args) > 2 {
		ft, err := models.ParseFileType(os.Args[2])
		if err != nil {
			return "", nil, nil, nil, err
		}
		fileType = &ft
	}

	cfg, err := config.New()
	if err != nil {
		return "", nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat, "data-ingestion")
	if err != nil {
		return "", nil, nil, nil, fmt.Errorf("failed to build logger: %w", err)
	}
	zap.ReplaceGlobals(log)

	store, err := database.Open(ctx, cfg.DatabaseURL, log)
	if err != nil {
		return "", nil, nil, nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	if err := store.CreateTables(ctx); err != nil {
		store.Close()
		return "", nil, nil, nil, fmt.Errorf("failed to create tables: %w", err)
	}

	fileProcessor := ingestion.NewFileProcessor(store, cfg.IngestionConfig(), log)
	handler := ingestion.NewIngestionService(fileProcessor, cfg.AllowedFileTypes, log)

	cleanupFunc := func() {
		store.Close()
		log.Sync()
	}

	return filesPath, fileType, handler, cleanupFunc, nil
}

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not load .env file: %v\n", err)
	}
	startTime := time.Now()
	ctx := context.Background()

	filesPath, fileType, handler, cleanupFunc, err := setup(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	zap.L().Info("starting ingestion", zap.String("path", filesPath))
	responses, err := handler.Execute(ctx, filesPath, fileType)
	if err != nil {
		zap.L().Error("ingestion failed", zap.Error(err))
		cleanupFunc()
		os.Exit(1)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(responses); err != nil {
		zap.L().Error("failed to write results", zap.Error(err))
	}

	zap.L().Info("ingestion finished", zap.Int("files", len(responses)), zap.Duration("elapsed", time.Since(startTime)))
	cleanupFunc()
}
