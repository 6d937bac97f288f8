package view

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/phrazzld/viewset/internal/api/shared"
)

// ErrContract marks a view or one of its hooks used against its contract.
// It always maps to 500.
var ErrContract = errors.New("view contract violation")

func contractErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrContract, fmt.Sprintf(format, args...))
}

// PartialInsertError reports a bulk create where the store inserted fewer
// documents than requested.
type PartialInsertError struct {
	Requested   int
	Inserted    int
	InsertedIDs []any
}

var _ shared.StatusError = (*PartialInsertError)(nil)

// Error implements the error interface.
func (e *PartialInsertError) Error() string {
	return fmt.Sprintf("inserted %d of %d documents", e.Inserted, e.Requested)
}

// StatusCode implements shared.StatusError.
func (e *PartialInsertError) StatusCode() int { return http.StatusExpectationFailed }

// ResponseHeaders implements shared.StatusError.
func (e *PartialInsertError) ResponseHeaders() http.Header { return nil }

// ResponseBody implements shared.StatusError.
func (e *PartialInsertError) ResponseBody() any {
	ids := e.InsertedIDs
	if ids == nil {
		ids = []any{}
	}
	return map[string]any{
		"error":        e.Error(),
		"requested":    e.Requested,
		"inserted":     e.Inserted,
		"inserted_ids": ids,
	}
}

func errBodyRequired() error {
	return shared.NewRequestError(http.StatusBadRequest, "Request body required")
}

func errMalformed(cause error) error {
	return shared.NewRequestError(http.StatusBadRequest, "Invalid request format").Wrap(cause)
}

// errNotFound is a 404 with an empty body, so a missing instance reveals nothing.
func errNotFound(cause error) error {
	return shared.NewRequestError(http.StatusNotFound, "").Wrap(cause)
}

// fail writes err. StatusErrors use their own contract; anything else is a
// 500 with the cause logged after redaction.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	if se, ok := shared.AsStatusError(err); ok {
		shared.RespondWithStatusError(w, r, se)
		return
	}
	shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "Internal server error", err)
}
