package shared

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeBody(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		body        string
		want        any
		wantPresent bool
		wantErr     bool
	}{
		{name: "object", body: `{"title":"a","n":2}`, want: map[string]any{"title": "a", "n": float64(2)}, wantPresent: true},
		{name: "array", body: `[{"id":"1"}]`, want: []any{map[string]any{"id": "1"}}, wantPresent: true},
		{name: "empty", body: "", wantPresent: false},
		{name: "whitespace", body: "  \n", wantPresent: false},
		{name: "null", body: " null ", wantPresent: false},
		{name: "malformed", body: `{"title":`, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))
			got, present, err := DecodeBody(req)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrMalformedBody)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantPresent, present)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDecodeBodyTooLarge(t *testing.T) {
	t.Parallel()

	big := `"` + strings.Repeat("x", MaxBodyBytes) + `"`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(big))
	_, _, err := DecodeBody(req)
	assert.ErrorIs(t, err, ErrMalformedBody)
}

type tokenRequest struct {
	Subject string `json:"subject" validate:"required"`
}

func TestDecodeJSONAndValidate(t *testing.T) {
	t.Parallel()

	var req tokenRequest
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"subject":"u1"}`))
	require.NoError(t, DecodeJSON(r, &req))
	assert.NoError(t, ValidateRequest(&req))

	assert.Error(t, ValidateRequest(&tokenRequest{}))
}

func TestPathParam(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodGet, "/notes/42", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("note_id", "42")
	r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
	assert.Equal(t, "42", PathParam(r, "note_id"))

	std := httptest.NewRequest(http.MethodGet, "/notes/7", nil)
	std.SetPathValue("note_id", "7")
	assert.Equal(t, "7", PathParam(std, "note_id"))

	assert.Empty(t, PathParam(httptest.NewRequest(http.MethodGet, "/", nil), "note_id"))
}

func TestQueryHelpers(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodGet, "/?limit=5&include_deleted&offset=-1&bad=x", nil)

	assert.True(t, HasQueryParam(r, "include_deleted"))
	assert.False(t, HasQueryParam(r, "missing"))

	n, err := QueryInt(r, "limit", 50)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	n, err = QueryInt(r, "missing", 50)
	require.NoError(t, err)
	assert.Equal(t, 50, n)

	_, err = QueryInt(r, "offset", 0)
	se, ok := AsStatusError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, se.StatusCode())

	_, err = QueryInt(r, "bad", 0)
	assert.Error(t, err)
}
