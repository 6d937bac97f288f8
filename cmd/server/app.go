package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/viewset/internal/config"
	"github.com/phrazzld/viewset/internal/service/auth"
	"github.com/phrazzld/viewset/internal/store"
)

// application holds the shared dependencies of the server and releases them
// on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger

	provider store.Provider
	tokens   auth.TokenService

	closeStore func(context.Context) error
}

// newApplication connects the configured store and builds the token service.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
	}

	var err error
	app.tokens, err = auth.NewTokenService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}
	logger.Info("Token service initialized",
		"issuer", cfg.Auth.Issuer,
		"max_age_minutes", cfg.Auth.MaxAgeMinutes)

	app.provider, app.closeStore, err = openStore(ctx, cfg.Store, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	logger.Info("Application initialized successfully")
	return app, nil
}

// Run serves HTTP until a shutdown signal arrives or ctx is canceled.
func (app *application) Run(ctx context.Context) error {
	router, err := app.setupRouter(ctx)
	if err != nil {
		return fmt.Errorf("failed to set up router: %w", err)
	}

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup releases the store connection.
func (app *application) cleanup(ctx context.Context) error {
	var errs []error
	if app.closeStore != nil {
		if err := app.closeStore(ctx); err != nil {
			app.logger.Error("Error closing store", "error", err)
			errs = append(errs, err)
		}
	}
	app.logger.Info("Application shutdown completed")
	return errors.Join(errs...)
}
