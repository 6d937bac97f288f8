package shared

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// MaxBodyBytes caps request bodies read by DecodeBody.
const MaxBodyBytes = 1 << 20

var (
	// ErrMalformedBody is returned for bodies that are not valid JSON.
	ErrMalformedBody = errors.New("malformed request body")

	validate = validator.New()
)

// DecodeBody reads a JSON request body into plain Go values (objects become
// map[string]any, numbers float64). present is false for an empty body and
// for a literal null.
func DecodeBody(r *http.Request) (value any, present bool, err error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, false, nil
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes+1))
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}
	if len(raw) > MaxBodyBytes {
		return nil, false, fmt.Errorf("%w: body exceeds %d bytes", ErrMalformedBody, MaxBodyBytes)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, false, nil
	}

	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}
	return value, value != nil, nil
}

// DecodeJSON decodes the request body into a typed struct.
func DecodeJSON(r *http.Request, v interface{}) error {
	return json.NewDecoder(io.LimitReader(r.Body, MaxBodyBytes)).Decode(v)
}

// ValidateRequest validates a decoded request struct.
func ValidateRequest(v interface{}) error {
	if validator, ok := v.(interface{ Validate() error }); ok {
		return validator.Validate()
	}
	return validate.Struct(v)
}

// PathParam returns a named path parameter set by chi, falling back to the
// standard library mux.
func PathParam(r *http.Request, name string) string {
	if v := chi.URLParam(r, name); v != "" {
		return v
	}
	return r.PathValue(name)
}

// HasQueryParam reports whether a query parameter is present, even if empty.
func HasQueryParam(r *http.Request, name string) bool {
	return r.URL.Query().Has(name)
}

// QueryInt parses a non-negative integer query parameter. A missing
// parameter yields def.
func QueryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, NewRequestError(http.StatusBadRequest,
			fmt.Sprintf("Invalid %q parameter: expected a non-negative integer", name))
	}
	return n, nil
}
