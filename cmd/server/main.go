// Package main runs the viewset example server. It mounts a per-user notes
// resource, a "me" view that echoes the caller's token claims, and the
// OpenAPI description of the mounted resources.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"

	"github.com/phrazzld/viewset/internal/config"
	"github.com/phrazzld/viewset/internal/platform/logger"
)

func main() {
	migrateCmd := flag.String("migrate", "", "run a migration command (up, version) against the postgres store and exit")
	flag.Parse()

	cfg, err := loadAppConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.Setup(cfg.Server)
	if err != nil {
		log.Fatalf("Failed to set up logger: %v", err)
	}

	ctx := context.Background()

	if *migrateCmd != "" {
		if err := runMigrations(ctx, cfg, *migrateCmd, appLogger); err != nil {
			appLogger.Error("Migration failed", "command", *migrateCmd, "error", err)
			log.Fatalf("Migration failed: %v", err)
		}
		return
	}

	app, err := newApplication(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Error("Failed to initialize application", "error", err)
		log.Fatalf("Failed to initialize application: %v", err)
	}

	if err := app.Run(ctx); err != nil {
		appLogger.Error("Server stopped with error", "error", err)
		log.Fatalf("Server error: %v", err)
	}
}

// loadAppConfig loads configuration and logs a summary without secrets.
func loadAppConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	slog.Info("Server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"store_driver", cfg.Store.Driver,
		"base_path", cfg.API.BasePath)

	if cfg.Store.URL != "" {
		slog.Debug("Store configuration", "url_present", true)
	}
	if cfg.API.IssueTokens {
		slog.Warn("Token issuing endpoint is enabled; do not use in production")
	}

	return cfg, nil
}
