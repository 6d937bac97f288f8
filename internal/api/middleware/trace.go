package middleware

import (
	"log/slog"
	"net/http"

	"github.com/phrazzld/viewset/internal/api/shared"
	"github.com/phrazzld/viewset/internal/platform/logger"
)

// TraceHeader echoes the request trace ID to clients.
const TraceHeader = "X-Trace-ID"

// NewTraceMiddleware assigns a trace ID to each request and stores a request
// logger tagged with it in the context. base may be nil.
func NewTraceMiddleware(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := shared.SetTraceID(r.Context())
			traceID := shared.GetTraceID(ctx)

			log := logger.FromContextOrDefault(ctx, base).With(slog.String("trace_id", traceID))
			ctx = logger.WithContext(ctx, log)

			log.Debug("request started",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr))

			w.Header().Set(TraceHeader, traceID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
