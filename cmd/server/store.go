package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/viewset/internal/config"
	"github.com/phrazzld/viewset/internal/platform/memory"
	"github.com/phrazzld/viewset/internal/platform/mongo"
	"github.com/phrazzld/viewset/internal/platform/postgres"
	"github.com/phrazzld/viewset/internal/store"
)

// openStore connects the configured driver. The returned function closes
// the connection.
func openStore(
	ctx context.Context,
	cfg config.StoreConfig,
	logger *slog.Logger,
) (store.Provider, func(context.Context) error, error) {
	switch cfg.Driver {
	case config.DriverMemory, "":
		logger.Warn("Using in-memory store; data is lost on restart")
		return memory.NewStore(), nil, nil

	case config.DriverPostgres:
		db, err := postgres.Open(ctx, cfg.URL)
		if err != nil {
			return nil, nil, err
		}
		version, err := postgres.MigrationVersion(ctx, db, logger)
		if err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("failed to read migration version: %w", err)
		}
		if version == 0 {
			logger.Warn("Database has no migrations applied; run with -migrate up")
		}
		logger.Info("Database connection established", "schema_version", version)
		return postgres.NewStore(db), func(context.Context) error { return db.Close() }, nil

	case config.DriverMongo:
		client, err := mongo.Connect(ctx, cfg.URL)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("MongoDB connection established", "database", cfg.Database)
		return mongo.NewStore(client.Database(cfg.Database)), client.Disconnect, nil

	default:
		return nil, nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}
}
