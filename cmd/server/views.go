package main

import (
	"context"
	"net/http"

	"github.com/phrazzld/viewset/internal/api/middleware"
	"github.com/phrazzld/viewset/internal/api/serializer"
	"github.com/phrazzld/viewset/internal/api/shared"
	"github.com/phrazzld/viewset/internal/api/view"
	"github.com/phrazzld/viewset/internal/field"
	"github.com/phrazzld/viewset/internal/model"
	"github.com/phrazzld/viewset/internal/store"
)

const ownerField = "owner"

func notesModel() *model.Model {
	return model.New("Note", field.NewSchema(
		field.PrimaryKey("id"),
		field.String("title", field.Required(), field.Rules("max=200")),
		field.String("body", field.Blank(), field.Default("")),
		field.String("status", field.Choices("draft", "published", "archived"), field.Default("draft")),
		field.Array("tags", field.DefaultFunc(func() any { return []any{} })),
		field.String(ownerField, field.ReadOnly(), field.Nullable()),
	))
}

// subjectAuthorizer admits requests whose verified token names a subject and
// attaches that subject as the auth context.
func subjectAuthorizer(r *http.Request, _ view.AuthParams) (view.Result, error) {
	claims, ok := middleware.ClaimsFromRequest(r)
	if !ok || claims.Subject() == "" {
		return view.Deny("Token has no subject"), nil
	}
	return view.AllowWith(claims.Subject()), nil
}

func subjectOf(r *http.Request) string {
	v, _ := shared.AuthContext(r.Context())
	s, _ := v.(string)
	return s
}

// ownedQueries scopes every query to the caller's documents.
type ownedQueries struct {
	view.DefaultQueries
}

func (ownedQueries) Base(r *http.Request, coll store.Collection) (store.Query, error) {
	return coll.Query().Filter(ownerField, subjectOf(r)), nil
}

func (app *application) newNotesResource() *view.Resource {
	m := notesModel()
	return view.NewResource(view.ResourceConfig{
		Model:      m,
		Collection: app.provider.Collection("notes", m.PrimaryKey()),
		Serializer: serializer.Generic{
			Fields: []string{"id", "title", "body", "status", "tags", ownerField, "created_at", "updated_at"},
			Getters: map[string]serializer.Getter{
				"created_at": metaGetter(store.CreatedField),
				"updated_at": metaGetter(store.UpdatedField),
			},
		},
		Authorizer: view.AuthorizerFunc(subjectAuthorizer),
		Queries:    ownedQueries{view.DefaultQueries{PageSize: app.config.API.PageSize}},
		SaveParams: func(r *http.Request) (map[string]any, error) {
			return map[string]any{ownerField: subjectOf(r)}, nil
		},
		Logger: app.logger,
	})
}

func metaGetter(name string) serializer.Getter {
	return func(_ context.Context, doc store.Document) (any, error) {
		return doc[name], nil
	}
}

// newMeView echoes the verified claims of the caller.
func (app *application) newMeView() *view.View {
	return view.New(view.Config{
		Name:       "me",
		Authorizer: view.AuthorizerFunc(subjectAuthorizer),
		Handlers: map[string]view.Handler{
			http.MethodGet: func(r *http.Request, _ any) (any, error) {
				claims, _ := middleware.ClaimsFromRequest(r)
				return map[string]any{"subject": subjectOf(r), "claims": claims}, nil
			},
		},
		AllowedMethods: []string{http.MethodGet},
		Logger:         app.logger,
	})
}

type tokenRequest struct {
	Subject string         `json:"subject" validate:"required,max=200"`
	Claims  map[string]any `json:"claims"`
}

// newTokenView issues signed tokens for any subject. It is only mounted when
// api.issue_tokens is enabled.
func (app *application) newTokenView() *view.View {
	return view.New(view.Config{
		Name: "tokens",
		Handlers: map[string]view.Handler{
			http.MethodPost: func(r *http.Request, _ any) (any, error) {
				var req tokenRequest
				if err := shared.DecodeJSON(r, &req); err != nil {
					return nil, shared.NewRequestError(http.StatusBadRequest, "Invalid request format").Wrap(err)
				}
				if err := shared.ValidateRequest(&req); err != nil {
					return nil, shared.NewRequestError(http.StatusBadRequest, "Invalid request: subject is required").Wrap(err)
				}

				payload := make(map[string]any, len(req.Claims)+1)
				for k, v := range req.Claims {
					payload[k] = v
				}
				payload["sub"] = req.Subject

				token, err := app.tokens.Generate(r.Context(), payload)
				if err != nil {
					return nil, err
				}
				return view.NewResponse(http.StatusCreated, map[string]any{"token": token}), nil
			},
		},
		AllowedMethods: []string{http.MethodPost},
		// The handler decodes its own typed body.
		IgnoreSerializerMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		Logger:                  app.logger,
	})
}
