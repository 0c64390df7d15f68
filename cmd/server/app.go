package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/taskforge/taskforge/internal/config"
	"github.com/taskforge/taskforge/internal/platform/postgres"
	"github.com/taskforge/taskforge/internal/platform/redis"
	"github.com/taskforge/taskforge/internal/service"
	"github.com/taskforge/taskforge/internal/store"
)

// application holds all the shared application dependencies to simplify
// management and ensure proper cleanup on shutdown.
type application struct {
	// Configuration
	config *config.Config

	// Core services
	logger *slog.Logger
	db     *sql.DB
	cache  *redis.Cache

	// Stores (using interfaces for proper abstraction)
	taskStore store.TaskStore

	// Service interfaces
	taskService service.TaskService
}

// newApplication creates a new application instance with all dependencies
// initialized. It accepts core dependencies like configuration, logger, and
// database connection that must be established before application
// initialization.
func newApplication(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	db *sql.DB,
) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	// Initialize the Redis-backed cache
	cache := redis.NewCache(redis.Config{
		Host:     cfg.Cache.Host,
		Port:     cfg.Cache.Port,
		Username: cfg.Cache.Username,
		Password: cfg.Cache.Password,
		DB:       cfg.Cache.DB,
	}, logger)
	if err := cache.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping cache: %w", err)
	}
	app.cache = cache
	logger.Info("Cache connection established",
		"host", cfg.Cache.Host,
		"port", cfg.Cache.Port)

	// Initialize stores
	app.taskStore = postgres.NewPostgresTaskStore(db, logger)

	// Initialize the task service
	taskService, err := service.NewTaskService(app.taskStore, app.cache, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create task service: %w", err)
	}
	app.taskService = taskService

	logger.Info("Application initialized successfully")
	return app, nil
}

// Run starts the application server, handling lifecycle and cleanup.
// It returns an error if the server fails to start or encounters problems.
func (app *application) Run(ctx context.Context) error {
	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.cache != nil {
		if err := app.cache.Close(); err != nil {
			app.logger.Error("Error closing cache connection", "error", err)
		}
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}

	app.logger.Info("Application shutdown completed")
}
