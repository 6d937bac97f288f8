package shared

import (
	"errors"
	"net/http"
)

// StatusError is an error with an explicit HTTP contract. Views and
// middleware format it directly instead of handing it to the generic
// error boundary.
type StatusError interface {
	error
	StatusCode() int
	ResponseHeaders() http.Header
	// ResponseBody is the JSON body to write, or nil for an empty body.
	ResponseBody() any
}

// RequestError is the base StatusError. Its body is {"error": Body} when Body
// is set, {"error": Message} when only Message is set, and empty otherwise.
type RequestError struct {
	Status  int
	Message string
	Body    any
	Headers http.Header
	Err     error
}

var _ StatusError = (*RequestError)(nil)

// NewRequestError creates a RequestError.
func NewRequestError(status int, message string) *RequestError {
	return &RequestError{Status: status, Message: message}
}

// NewAuthorizationError creates a 403 RequestError.
func NewAuthorizationError(message string) *RequestError {
	if message == "" {
		message = "Forbidden"
	}
	return NewRequestError(http.StatusForbidden, message)
}

// WithBody sets a structured body.
func (e *RequestError) WithBody(body any) *RequestError {
	e.Body = body
	return e
}

// WithHeader adds a response header.
func (e *RequestError) WithHeader(key, value string) *RequestError {
	if e.Headers == nil {
		e.Headers = http.Header{}
	}
	e.Headers.Add(key, value)
	return e
}

// Wrap records the underlying cause for logging.
func (e *RequestError) Wrap(err error) *RequestError {
	e.Err = err
	return e
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if text := http.StatusText(e.Status); text != "" {
		return text
	}
	return "request error"
}

// Unwrap returns the underlying cause.
func (e *RequestError) Unwrap() error { return e.Err }

// StatusCode implements StatusError.
func (e *RequestError) StatusCode() int {
	if e.Status == 0 {
		return http.StatusBadRequest
	}
	return e.Status
}

// ResponseHeaders implements StatusError.
func (e *RequestError) ResponseHeaders() http.Header { return e.Headers }

// ResponseBody implements StatusError.
func (e *RequestError) ResponseBody() any {
	switch {
	case e.Body != nil:
		return map[string]any{"error": e.Body}
	case e.Message != "":
		return map[string]any{"error": e.Message}
	default:
		return nil
	}
}

// AsStatusError extracts a StatusError from err's chain.
func AsStatusError(err error) (StatusError, bool) {
	var se StatusError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
