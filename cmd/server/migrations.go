package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/viewset/internal/config"
	"github.com/phrazzld/viewset/internal/platform/postgres"
)

// Migration commands accepted by -migrate.
const (
	migrateUp      = "up"
	migrateVersion = "version"
)

// runMigrations executes a migration command against the postgres store.
func runMigrations(ctx context.Context, cfg *config.Config, command string, logger *slog.Logger) error {
	if command != migrateUp && command != migrateVersion {
		return fmt.Errorf("unsupported migration command %q (want %q or %q)", command, migrateUp, migrateVersion)
	}
	if cfg.Store.Driver != config.DriverPostgres {
		return fmt.Errorf("migrations require the %q store driver, got %q", config.DriverPostgres, cfg.Store.Driver)
	}

	db, err := postgres.Open(ctx, cfg.Store.URL)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Error closing database connection", "error", err)
		}
	}()

	switch command {
	case migrateUp:
		if err := postgres.Migrate(ctx, db, logger); err != nil {
			return err
		}
		logger.Info("Migrations applied")
	case migrateVersion:
		version, err := postgres.MigrationVersion(ctx, db, logger)
		if err != nil {
			return fmt.Errorf("failed to read migration version: %w", err)
		}
		logger.Info("Current schema version", "version", version)
	}
	return nil
}
