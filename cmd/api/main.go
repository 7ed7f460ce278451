package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prodreports/dispatch-ingestion/internal/config"
	"github.com/prodreports/dispatch-ingestion/internal/database"
	"github.com/prodreports/dispatch-ingestion/internal/ingestion"
	"github.com/prodreports/dispatch-ingestion/internal/logger"
	"github.com/prodreports/dispatch-ingestion/internal/server"
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

	zapLogger, err := logger.New(cfg.LogLevel, cfg.LogFormat, "api")
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zapLogger.Sync()
	zap.ReplaceGlobals(zapLogger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cfg.EnsureUploadFolder(); err != nil {
		zapLogger.Fatal("failed to create upload folder", zap.Error(err))
	}

	store, err := database.Open(ctx, cfg.DatabaseURL, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed to connect to the database", zap.Error(err))
	}
	defer store.Close()

	if err := store.CreateTables(ctx); err != nil {
		zapLogger.Fatal("failed to setup database", zap.Error(err))
	}

	fileProcessor := ingestion.NewFileProcessor(store, cfg.IngestionConfig(), zapLogger)
	router := server.SetupRoutes(cfg.APIV1Str, server.NewDispatchService(cfg, store, fileProcessor, zapLogger))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.APIPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			zapLogger.Error("server shutdown failed", zap.Error(err))
		}
	}()

	zapLogger.Info("server starting", zap.Int("port", cfg.APIPort), zap.String("database", cfg.DatabaseURL))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		zapLogger.Fatal("failed to start server", zap.Error(err))
	}
}
