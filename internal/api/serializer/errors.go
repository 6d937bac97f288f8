package serializer

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/phrazzld/viewset/internal/api/shared"
)

// ErrContract marks a serializer used against its contract. Such errors are
// defects and map to 500, never to a client status.
var ErrContract = errors.New("serializer contract violation")

// Contract violations.
var (
	ErrNoInstance    = fmt.Errorf("%w: no instance to serialize", ErrContract)
	ErrNoData        = fmt.Errorf("%w: no data to deserialize", ErrContract)
	ErrArrayMismatch = fmt.Errorf("%w: many flag does not match input shape", ErrContract)
	ErrInstanceType  = fmt.Errorf("%w: unsupported instance type", ErrContract)
)

// SerializationError reports a failed serialize or deserialize call that is
// not the client's fault.
type SerializationError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *SerializationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap supports errors.Is.
func (e *SerializationError) Unwrap() error { return e.Err }

func contractError(op string, err error) error {
	return &SerializationError{Op: op, Err: err}
}

// NonFieldKey holds errors that do not belong to a single field.
const NonFieldKey = "non_field_errors"

// DeserializationError carries every field problem found in the input,
// keyed by field name ("<index>.<field>" for many=true).
type DeserializationError struct {
	Errors map[string]string
}

var _ shared.StatusError = (*DeserializationError)(nil)

// Error implements the error interface with a stable, sorted rendering.
func (e *DeserializationError) Error() string {
	keys := make([]string, 0, len(e.Errors))
	for k := range e.Errors {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Errors[k]
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

// StatusCode implements shared.StatusError.
func (e *DeserializationError) StatusCode() int { return http.StatusBadRequest }

// ResponseHeaders implements shared.StatusError.
func (e *DeserializationError) ResponseHeaders() http.Header { return nil }

// ResponseBody implements shared.StatusError.
func (e *DeserializationError) ResponseBody() any {
	return map[string]any{"error": e.Errors}
}
