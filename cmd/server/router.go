package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/phrazzld/viewset/internal/api/controller"
	apiMiddleware "github.com/phrazzld/viewset/internal/api/middleware"
	"github.com/phrazzld/viewset/internal/api/openapi"
)

// apiVersion is reported in the OpenAPI document.
const apiVersion = "1.0.0"

// setupRouter builds the chi router with global middleware, the health
// check, every mounted view and the OpenAPI endpoints.
func (app *application) setupRouter(ctx context.Context) (http.Handler, error) {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.NewTraceMiddleware(app.logger))

	base := app.config.API.BasePath
	notesPath := base + "/notes"
	mePath := base + "/me"

	bearer := apiMiddleware.NewAuthorization(app.tokens, app.config.Auth.HeaderName)
	bearer.Logger = app.logger

	c := controller.New()
	c.Use(notesPath, bearer.Middleware)
	c.Use(mePath, bearer.Middleware)

	notes := app.newNotesResource()
	notes.Register(c, notesPath)
	app.newMeView().Register(c, mePath)
	if app.config.API.IssueTokens {
		app.newTokenView().Register(c, base+"/tokens")
	}
	c.CompileInto(r)

	doc, err := openapi.Build(ctx,
		openapi3.Info{Title: "viewset", Version: apiVersion},
		openapi.Mount{Prefix: notesPath, Resource: notes})
	if err != nil {
		return nil, fmt.Errorf("failed to build OpenAPI document: %w", err)
	}
	yamlHandler, err := openapi.YAMLHandler(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to render OpenAPI document: %w", err)
	}
	r.Get("/openapi.json", openapi.JSONHandler(doc))
	r.Get("/openapi.yaml", yamlHandler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("Failed to write health check response", "error", err)
		}
	})

	return r, nil
}
