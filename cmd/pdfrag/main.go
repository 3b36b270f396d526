package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/pdfrag/internal/app"
	"github.com/kailas-cloud/pdfrag/internal/config"
	logpkg "github.com/kailas-cloud/pdfrag/internal/logger"
	"github.com/kailas-cloud/pdfrag/internal/metrics"
	chiTransport "github.com/kailas-cloud/pdfrag/internal/transport/chi"
	"github.com/kailas-cloud/pdfrag/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting pdfrag API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("vector_store", cfg.VectorStore.Driver),
	)

	// Register metrics explicitly (no init())
	metrics.Register()

	ctx := logpkg.ContextWithLogger(context.Background(), logger)

	pipelines, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to build pipelines", zap.Error(err))
	}
	defer pipelines.Close()

	if err := pipelines.Initialize(ctx); err != nil {
		logger.Fatal("Failed to initialize vector store", zap.Error(err))
	}

	server := chiTransport.NewServer(pipelines.Ingest, pipelines.Retrieval, pipelines.Health, chiTransport.Config{
		MaxUploadBytes: int64(cfg.HTTP.MaxUploadMB) << 20,
		UploadDir:      cfg.HTTP.UploadDir,
	}, logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.Routes(),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}
