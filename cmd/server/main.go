// Package main implements the entry point for the report generation API
// server, which manages long-running document and report tasks and exposes
// their lifecycle over HTTP.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"

	"github.com/ButtcoinTNB/report-gen-sub001/internal/config"
	"github.com/ButtcoinTNB/report-gen-sub001/internal/platform/logger"
)

// main initializes configuration, logging, the database, the task
// orchestrator and the HTTP server, then blocks until shutdown.
func main() {
	ctx := context.Background()

	cfg, appLogger, err := initializeApp()
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	app, err := newApplication(ctx, cfg, appLogger)
	if err != nil {
		log.Fatalf("Failed to build application: %v", err)
	}

	if err := app.startHTTPServer(ctx, app.setupRouter()); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// initializeApp loads configuration and sets up structured logging.
// Returns the loaded config, the root logger, and any initialization error.
func initializeApp() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	slog.Info("Server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"sweep_interval", cfg.Task.SweepInterval)

	if cfg.LLM.GeminiAPIKey != "" {
		slog.Debug("LLM configuration", "model", cfg.LLM.ModelName)
	}

	return cfg, appLogger, nil
}
