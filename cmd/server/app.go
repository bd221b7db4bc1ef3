package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/ButtcoinTNB/report-gen-sub001/internal/config"
	"github.com/ButtcoinTNB/report-gen-sub001/internal/events"
	"github.com/ButtcoinTNB/report-gen-sub001/internal/platform/gemini"
	"github.com/ButtcoinTNB/report-gen-sub001/internal/platform/postgres"
	"github.com/ButtcoinTNB/report-gen-sub001/internal/service/auth"
	"github.com/ButtcoinTNB/report-gen-sub001/internal/store"
	"github.com/ButtcoinTNB/report-gen-sub001/internal/task"
)

// application bundles the initialized dependencies of the server process.
type application struct {
	// Configuration
	config *config.Config

	// Core services
	logger *slog.Logger
	db     *sql.DB

	// Stores (using interfaces for proper abstraction)
	taskStore store.TaskStore

	// Service interfaces
	jwtService auth.JWTService

	// Event system
	eventEmitter events.EventEmitter

	// Task handling
	orchestrator *task.Orchestrator
	sweeper      *task.Sweeper
}

// taskEventLogger logs every task lifecycle transition at info level. It is
// the default subscriber; deployments can register further handlers (webhook
// notifiers and the like) on the same emitter.
type taskEventLogger struct {
	logger *slog.Logger
}

func (l *taskEventLogger) HandleEvent(ctx context.Context, event *events.TaskStatusEvent) error {
	l.logger.Info("task status changed",
		"task_id", event.TaskID,
		"task_type", event.TaskType,
		"status", event.Status,
		"progress", event.Progress)
	return nil
}

// newApplication creates a new application instance with all dependencies
// initialized: database, migrations, task store, orchestrator, sweeper, and
// the JWT service backing the auth middleware.
func newApplication(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
	}

	db, err := setupAppDatabase(cfg, logger)
	if err != nil {
		return nil, err
	}
	app.db = db

	if err := runMigrations(db, logger); err != nil {
		return nil, err
	}

	app.taskStore = postgres.NewPostgresTaskStore(db, logger)

	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWT service: %w", err)
	}

	emitter := events.NewInMemoryEventEmitter(logger)
	emitter.RegisterHandler(&taskEventLogger{logger: logger})
	app.eventEmitter = emitter

	orchConfig := task.DefaultOrchestratorConfig()
	orchConfig.Emitter = emitter
	if cfg.LLM.GeminiAPIKey != "" {
		drafter, err := gemini.NewDrafter(ctx, logger, cfg.LLM)
		if err != nil {
			return nil, fmt.Errorf("failed to create report drafter: %w", err)
		}
		orchConfig.Drafter = drafter
		logger.Info("Report drafter enabled", "model", cfg.LLM.ModelName)
	}

	app.orchestrator, err = task.NewOrchestrator(app.taskStore, orchConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}

	app.sweeper = task.NewSweeper(app.orchestrator, cfg.Task.SweepInterval, logger)
	app.sweeper.Start()

	return app, nil
}

// cleanup releases resources held by the application during shutdown.
func (app *application) cleanup() {
	if app.sweeper != nil {
		app.sweeper.Stop()
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Failed to close database connection", "error", err)
		}
	}
}
