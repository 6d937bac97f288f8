package view

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/phrazzld/viewset/internal/api/controller"
	"github.com/phrazzld/viewset/internal/api/serializer"
	"github.com/phrazzld/viewset/internal/api/shared"
	"github.com/phrazzld/viewset/internal/field"
	"github.com/phrazzld/viewset/internal/model"
	"github.com/phrazzld/viewset/internal/platform/logger"
	"github.com/phrazzld/viewset/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) any {
	t.Helper()
	var out any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	return out
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) any {
	t.Helper()
	body, ok := decode(t, rec).(map[string]any)
	require.True(t, ok, "body: %s", rec.Body.String())
	return body["error"]
}

func mount(v *View) *controller.Controller {
	c := controller.New()
	v.Register(c, "/")
	return c
}

func TestAuthorization(t *testing.T) {
	t.Parallel()

	t.Run("denial never reaches handler", func(t *testing.T) {
		t.Parallel()
		called := false
		v := New(Config{
			Name: "secret",
			Handlers: map[string]Handler{http.MethodGet: func(r *http.Request, _ any) (any, error) {
				called = true
				return nil, nil
			}},
			Authorizer: AuthorizerFunc(func(*http.Request, AuthParams) (Result, error) {
				return Deny("Not yours"), nil
			}),
		})

		rec := serve(t, mount(v), http.MethodGet, "/", "")
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "Not yours", errorOf(t, rec))
		assert.False(t, called)
	})

	t.Run("empty denial message", func(t *testing.T) {
		t.Parallel()
		v := New(Config{
			Handlers: map[string]Handler{http.MethodGet: func(*http.Request, any) (any, error) { return nil, nil }},
			Authorizer: AuthorizerFunc(func(*http.Request, AuthParams) (Result, error) {
				return Deny(""), nil
			}),
		})

		rec := serve(t, mount(v), http.MethodGet, "/", "")
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "Forbidden", errorOf(t, rec))
	})

	t.Run("allow with context", func(t *testing.T) {
		t.Parallel()
		var authorized bool
		var authCtx any
		v := New(Config{
			Handlers: map[string]Handler{http.MethodGet: func(r *http.Request, _ any) (any, error) {
				authorized = shared.IsAuthorized(r.Context())
				authCtx, _ = shared.AuthContext(r.Context())
				return map[string]any{"ok": true}, nil
			}},
			Authorizer: AuthorizerFunc(func(*http.Request, AuthParams) (Result, error) {
				return AllowWith("user-1"), nil
			}),
		})

		rec := serve(t, mount(v), http.MethodGet, "/", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, authorized)
		assert.Equal(t, "user-1", authCtx)
	})

	t.Run("status error from authorizer", func(t *testing.T) {
		t.Parallel()
		v := New(Config{
			Handlers: map[string]Handler{http.MethodGet: func(*http.Request, any) (any, error) { return nil, nil }},
			Authorizer: AuthorizerFunc(func(*http.Request, AuthParams) (Result, error) {
				return Result{}, shared.NewRequestError(http.StatusUnauthorized, "Log in").
					WithHeader("WWW-Authenticate", "Bearer")
			}),
		})

		rec := serve(t, mount(v), http.MethodGet, "/", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
		assert.Equal(t, "Log in", errorOf(t, rec))
	})

	t.Run("generic authorizer error", func(t *testing.T) {
		t.Parallel()
		v := New(Config{
			Handlers: map[string]Handler{http.MethodGet: func(*http.Request, any) (any, error) { return nil, nil }},
			Authorizer: AuthorizerFunc(func(*http.Request, AuthParams) (Result, error) {
				return Result{}, errors.New("password=hunter2 lookup failed")
			}),
		})

		rec := serve(t, mount(v), http.MethodGet, "/", "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "Internal server error", errorOf(t, rec))
		assert.NotContains(t, rec.Body.String(), "hunter2")
	})
}

func TestDispatch(t *testing.T) {
	t.Parallel()

	echo := func(_ *http.Request, body any) (any, error) { return body, nil }
	v := New(Config{
		Name:           "echo",
		Handlers:       map[string]Handler{http.MethodPost: echo, http.MethodPatch: echo},
		AllowedMethods: []string{"post", "get"},
	})
	h := mount(v)

	tests := []struct {
		name   string
		method string
		body   string
		status int
	}{
		{"allowed with handler", http.MethodPost, `{"a":1}`, http.StatusOK},
		{"not allowed", http.MethodPatch, `{"a":1}`, http.StatusMethodNotAllowed},
		{"allowed without handler", http.MethodGet, "", http.StatusNotImplemented},
		{"malformed body", http.MethodPost, `{"a":`, http.StatusBadRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			rec := serve(t, h, tc.method, "/", tc.body)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
		})
	}

	rec := serve(t, h, http.MethodPost, "/", `{"a":1}`)
	assert.Equal(t, map[string]any{"a": float64(1)}, decode(t, rec))

	rec = serve(t, h, http.MethodPost, "/", `{"a":`)
	assert.Equal(t, "Invalid request format", errorOf(t, rec))

	assert.Equal(t, []string{http.MethodPost}, v.HandledMethods())
}

func TestSerializedView(t *testing.T) {
	t.Parallel()

	m := model.New("Greeting", field.NewSchema(
		field.String("name", field.Required()),
		field.Integer("times", field.Default(int64(1))),
	))

	var got any
	v := New(Config{
		Model:      m,
		Serializer: serializer.Generic{Fields: []string{"name", "times"}},
		Handlers: map[string]Handler{
			http.MethodPost: func(_ *http.Request, body any) (any, error) {
				got = body
				doc := body.(store.Document).Clone()
				doc["secret"] = "hidden"
				return doc, nil
			},
			http.MethodGet: func(*http.Request, any) (any, error) {
				return &Response{
					Status:  http.StatusAccepted,
					Body:    map[string]any{"raw": true},
					Headers: http.Header{"X-Custom": []string{"yes"}},
				}, nil
			},
		},
	})
	h := mount(v)

	t.Run("deserializes and serializes", func(t *testing.T) {
		rec := serve(t, h, http.MethodPost, "/", `{"name":"ada"}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, store.Document{"name": "ada", "times": int64(1)}, got)
		assert.Equal(t, map[string]any{"name": "ada", "times": float64(1)}, decode(t, rec))
	})

	t.Run("field errors", func(t *testing.T) {
		rec := serve(t, h, http.MethodPost, "/", `{"name":7,"extra":true}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, map[string]any{
			"name":  "Invalid value: expected string, got number",
			"extra": "Field not recognized",
		}, errorOf(t, rec))
	})

	t.Run("body required", func(t *testing.T) {
		for _, body := range []string{"", "null"} {
			rec := serve(t, h, http.MethodPost, "/", body)
			require.Equal(t, http.StatusBadRequest, rec.Code, "body %q", body)
			assert.Equal(t, "Request body required", errorOf(t, rec))
		}
	})

	t.Run("response used verbatim", func(t *testing.T) {
		rec := serve(t, h, http.MethodGet, "/", "")
		require.Equal(t, http.StatusAccepted, rec.Code)
		assert.Equal(t, "yes", rec.Header().Get("X-Custom"))
		assert.Equal(t, map[string]any{"raw": true}, decode(t, rec))
	})
}

func TestHandlerErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		err    error
		status int
		body   string
	}{
		{"request error", shared.NewRequestError(http.StatusTeapot, "short and stout"), http.StatusTeapot, `{"error":"short and stout"}`},
		{"empty request error", shared.NewRequestError(http.StatusNotFound, ""), http.StatusNotFound, ""},
		{"contract error", contractErrorf("hook misbehaved"), http.StatusInternalServerError, `{"error":"Internal server error"}`},
		{"generic error", errors.New("boom"), http.StatusInternalServerError, `{"error":"Internal server error"}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			v := New(Config{Handlers: map[string]Handler{
				http.MethodGet: func(*http.Request, any) (any, error) { return nil, tc.err },
			}})

			rec := serve(t, mount(v), http.MethodGet, "/", "")
			assert.Equal(t, tc.status, rec.Code)
			if tc.body == "" {
				assert.Empty(t, rec.Body.String())
				return
			}
			assert.JSONEq(t, tc.body, rec.Body.String())
		})
	}
}

func TestSerializerContractErrorIsFatal(t *testing.T) {
	t.Parallel()

	v := New(Config{
		Model:      model.New("Thing", nil),
		Serializer: serializer.Generic{},
		Handlers: map[string]Handler{
			http.MethodGet: func(*http.Request, any) (any, error) { return "not a document", nil },
		},
	})

	rec := serve(t, mount(v), http.MethodGet, "/", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGuardedWriter(t *testing.T) {
	t.Parallel()

	g := &guardedWriter{ResponseWriter: httptest.NewRecorder()}
	assert.False(t, Written(g))

	_, err := g.Write([]byte("x"))
	require.NoError(t, err)
	assert.True(t, Written(g))

	assert.Panics(t, func() { g.WriteHeader(http.StatusOK) })
	assert.False(t, Written(httptest.NewRecorder()))
}

func TestDoubleWritePanics(t *testing.T) {
	t.Parallel()

	v := New(Config{Handlers: map[string]Handler{
		http.MethodGet: func(*http.Request, any) (any, error) { return nil, nil },
	}})
	writeTwice := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			next.ServeHTTP(w, r)
		})
	}

	h := v.Handler(AuthParams{}, writeTwice)
	assert.Panics(t, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestSerializerFuncOverride(t *testing.T) {
	t.Parallel()

	m := model.New("Thing", nil)
	v := New(Config{
		Model:      m,
		Serializer: serializer.Generic{Fields: []string{"a"}},
		SerializerFunc: func(r *http.Request) serializer.Factory {
			if r.URL.Query().Has("raw") {
				return nil
			}
			return serializer.Generic{Fields: []string{"b"}}
		},
		Handlers: map[string]Handler{
			http.MethodGet: func(*http.Request, any) (any, error) {
				return store.Document{"a": 1, "b": 2}, nil
			},
		},
	})
	h := mount(v)

	assert.Equal(t, map[string]any{"b": float64(2)}, decode(t, serve(t, h, http.MethodGet, "/", "")))
	assert.Equal(t, map[string]any{"a": float64(1), "b": float64(2)}, decode(t, serve(t, h, http.MethodGet, "/?raw", "")))
}

func TestGuardTagsLoggerOnce(t *testing.T) {
	t.Parallel()

	newView := func(log *slog.Logger) *View {
		return New(Config{
			Name:   "notes",
			Logger: log,
			Handlers: map[string]Handler{
				http.MethodGet: func(r *http.Request, _ any) (any, error) {
					logger.FromContext(r.Context()).Info("handled")
					return map[string]any{}, nil
				},
			},
		})
	}

	t.Run("view logger", func(t *testing.T) {
		t.Parallel()
		log, buf := logger.NewTestLogger(t)

		rec := serve(t, mount(newView(log)), http.MethodGet, "/", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1, strings.Count(buf.String(), `"view":"notes"`), buf.String())
	})

	t.Run("request logger", func(t *testing.T) {
		t.Parallel()
		viewLog, viewBuf := logger.NewTestLogger(t)
		reqLog, reqBuf := logger.NewTestLogger(t)

		h := mount(newView(viewLog))
		withRequestLogger := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := logger.WithContext(r.Context(), reqLog.With(slog.String("trace_id", "t1")))
			h.ServeHTTP(w, r.WithContext(ctx))
		})

		rec := serve(t, withRequestLogger, http.MethodGet, "/", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, viewBuf.String())
		assert.Equal(t, 1, strings.Count(reqBuf.String(), `"view":"notes"`), reqBuf.String())
		assert.Contains(t, reqBuf.String(), `"trace_id":"t1"`)
	})
}
