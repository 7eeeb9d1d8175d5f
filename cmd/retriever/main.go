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

	"github.com/kailas-cloud/retriever/internal/app"
	"github.com/kailas-cloud/retriever/internal/config"
	logpkg "github.com/kailas-cloud/retriever/internal/logger"
	chiTransport "github.com/kailas-cloud/retriever/internal/transport/chi"
	"github.com/kailas-cloud/retriever/internal/version"
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

	logger.Info("Starting retriever API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("index_driver", cfg.SearchIndex.Driver),
		zap.String("index", cfg.SearchIndex.Index),
		zap.String("completion_model", cfg.Completion.Model),
		zap.String("embedding_model", cfg.Embedding.Model),
	)

	a, err := app.Build(context.Background(), &cfg, logger)
	if err != nil {
		logger.Fatal("Failed to build application", zap.Error(err))
	}
	defer a.Close()

	server := chiTransport.NewServer(a.Retrieval, a.Health, cfg.Orchestrator.DefaultTopK, logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           server.Router(cfg.Auth.APIKeys),
		ReadTimeout:       time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
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

	stats := a.Cache.Stats()
	logger.Info("Server stopped gracefully",
		zap.Int("embedding_cache_entries", a.Cache.Len()),
		zap.Int64("embedding_cache_hits", stats.Hits),
		zap.Int64("embedding_cache_misses", stats.Misses),
		zap.Int64("embedding_cache_evictions", stats.Evictions),
		zap.Int64("embedding_cache_failures", stats.Failures),
	)
}
