// Package main provides the HTTP server for dbscribe.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dbscribe/dbscribe/internal/config"
	"github.com/dbscribe/dbscribe/internal/docs"
	"github.com/dbscribe/dbscribe/internal/index"
	"github.com/dbscribe/dbscribe/internal/llm"
	"github.com/dbscribe/dbscribe/internal/metrics"
	"github.com/dbscribe/dbscribe/internal/mssql"
	"github.com/dbscribe/dbscribe/internal/server"
)

func main() {
	configFile := flag.String("config", "", "path to YAML config file (overlays env vars)")
	flag.Parse()

	// Load configuration
	var cfg config.Config
	var err error
	if *configFile != "" {
		cfg, err = config.LoadFile(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	} else {
		cfg = config.Load()
	}

	// Initialize logging
	logger, closeLog := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	slog.SetDefault(logger)
	defer func() {
		if err := closeLog(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to close log file: %v\n", err)
		}
	}()

	slog.Info("starting dbscribe-server", "port", cfg.Port)

	collector := metrics.NewCollector()

	// Embedder is required: without it the index cannot store or search.
	embedder, err := llm.NewEmbedder(cfg, collector)
	if err != nil {
		slog.Error("failed to create embedder", "error", err)
		os.Exit(1)
	}

	// The LLM model is optional: without it documentation runs without
	// analysis narratives.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	model, err := llm.NewModel(ctx, cfg)
	cancel()
	if err != nil {
		slog.Warn("LLM provider unavailable, analysis disabled", "error", err)
		model = nil
	}
	gateway := llm.NewGateway(model, collector)

	store, err := index.Open(cfg.IndexPath, embedder, collector)
	if err != nil {
		slog.Error("failed to open document index", "error", err, "path", cfg.IndexPath)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Error("failed to close document index", "error", err)
		}
	}()

	connect := func(ctx context.Context, dbCfg mssql.Config) (*docs.Documenter, func() error, error) {
		dbClient, err := mssql.NewClient(ctx, dbCfg, collector)
		if err != nil {
			return nil, nil, err
		}
		doc := docs.NewDocumenter(dbClient, gateway, store, logger, cfg.StepTimeout)
		return doc, dbClient.Close, nil
	}

	srv := server.New(cfg, logger, collector, connect)
	defer func() {
		if err := srv.Close(); err != nil {
			slog.Error("failed to close database connection", "error", err)
		}
	}()

	// Create HTTP server
	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 60 * time.Second, // Long for LLM-interpreted searches
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("API available", "url", fmt.Sprintf("http://localhost:%s/api", cfg.Port))

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped")
}
