package shared

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/phrazzld/viewset/internal/platform/logger"
	"github.com/phrazzld/viewset/internal/redact"
)

// ErrorResponse defines the generic error response structure.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// ResponseOption customizes error response logging.
type ResponseOption func(*responseOptions)

type responseOptions struct {
	elevateLogLevel bool
}

// WithElevatedLogLevel raises 4xx responses from DEBUG to WARN.
func WithElevatedLogLevel() ResponseOption {
	return func(opts *responseOptions) {
		opts.elevateLogLevel = true
	}
}

// RespondWithJSON writes data as JSON. A nil data or a 204 status writes
// no body.
func RespondWithJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	if data == nil || status == http.StatusNoContent {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.FromContext(r.Context()).Error("failed to encode JSON response", "error", err)
	}
}

// RespondWithError writes {"error": message, "trace_id": ...}.
func RespondWithError(w http.ResponseWriter, r *http.Request, status int, message string) {
	traceID := GetTraceID(r.Context())

	logger.FromContext(r.Context()).Debug("sending error response",
		"status_code", status,
		"message", message,
		"path", r.URL.Path,
		"method", r.Method)

	RespondWithJSON(w, r, status, ErrorResponse{Error: message, TraceID: traceID})
}

// RespondWithStatusError writes err using its own status, headers and body.
func RespondWithStatusError(w http.ResponseWriter, r *http.Request, err StatusError) {
	for key, values := range err.ResponseHeaders() {
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}

	level := slog.LevelDebug
	if err.StatusCode() >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	logger.FromContext(r.Context()).Log(r.Context(), level, "request error response",
		"status_code", err.StatusCode(),
		"error", redact.Error(err),
		"path", r.URL.Path,
		"method", r.Method)

	RespondWithJSON(w, r, err.StatusCode(), err.ResponseBody())
}

// RespondWithErrorAndLog writes a sanitized error response and logs the
// redacted cause: 5xx at ERROR, 429 at WARN, other 4xx at DEBUG unless
// elevated.
func RespondWithErrorAndLog(
	w http.ResponseWriter,
	r *http.Request,
	status int,
	userMessage string,
	err error,
	opts ...ResponseOption,
) {
	traceID := GetTraceID(r.Context())

	logAttrs := []slog.Attr{
		slog.String("path", r.URL.Path),
		slog.String("method", r.Method),
		slog.Int("status_code", status),
		slog.String("user_message", userMessage),
	}
	if err != nil {
		logAttrs = append(logAttrs,
			slog.String("error", redact.Error(err)),
			slog.String("error_type", fmt.Sprintf("%T", err)))
	}

	responseOpts := responseOptions{}
	for _, opt := range opts {
		opt(&responseOpts)
	}

	logLevel := slog.LevelDebug
	switch {
	case status >= http.StatusInternalServerError:
		logLevel = slog.LevelError
	case status == http.StatusTooManyRequests:
		logLevel = slog.LevelWarn
	case responseOpts.elevateLogLevel && status >= http.StatusBadRequest:
		logLevel = slog.LevelWarn
	}

	logger.FromContext(r.Context()).LogAttrs(r.Context(), logLevel, "API error response", logAttrs...)

	RespondWithJSON(w, r, status, ErrorResponse{Error: userMessage, TraceID: traceID})
}
