package main

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the pgx database/sql driver
	"github.com/pressly/goose/v3"

	"github.com/taskforge/taskforge/internal/config"
)

// MigrationsDirName is the repository directory holding the goose SQL
// migration files.
const MigrationsDirName = "migrations"

// MigrationTableName is the table goose uses to track applied versions.
const MigrationTableName = "goose_db_version"

// slogGooseLogger adapts slog to the goose.Logger interface.
type slogGooseLogger struct{}

// Printf implements goose.Logger by forwarding messages to slog.Info.
func (l *slogGooseLogger) Printf(format string, v ...interface{}) {
	slog.Info(fmt.Sprintf(format, v...))
}

// Fatalf implements goose.Logger by forwarding messages to slog.Error.
// Exiting is left to the caller; migration errors propagate as errors.
func (l *slogGooseLogger) Fatalf(format string, v ...interface{}) {
	slog.Error(fmt.Sprintf(format, v...))
}

// handleMigrations runs one goose migration command against the configured
// database and returns when it completes. It is invoked from main() when the
// -migrate flag is set; the server does not start in that case.
func handleMigrations(cfg *config.Config, command string, logger *slog.Logger) error {
	migrationsDir, err := resolveMigrationsDir()
	if err != nil {
		return err
	}

	db, err := sql.Open("pgx", cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Error closing database connection after migration", "error", err)
		}
	}()

	goose.SetLogger(&slogGooseLogger{})
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	goose.SetTableName(MigrationTableName)

	logger.Info("Executing migration command",
		"command", command,
		"dir", migrationsDir)

	switch command {
	case "up":
		err = goose.Up(db, migrationsDir)
	case "down":
		err = goose.Down(db, migrationsDir)
	case "status":
		err = goose.Status(db, migrationsDir)
	case "version":
		err = goose.Version(db, migrationsDir)
	default:
		return fmt.Errorf(
			"unknown migration command: %s (expected up, down, status, or version)",
			command,
		)
	}
	if err != nil {
		return fmt.Errorf("migration command %q failed: %w", command, err)
	}

	return nil
}

// resolveMigrationsDir locates the migrations directory relative to the
// working directory.
func resolveMigrationsDir() (string, error) {
	dir, err := filepath.Abs(MigrationsDirName)
	if err != nil {
		return "", fmt.Errorf("failed to resolve migrations directory: %w", err)
	}
	if _, err := os.Stat(dir); err != nil {
		return "", fmt.Errorf("migrations directory not found at %s: %w", dir, err)
	}
	return dir, nil
}
