package shared

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// ContextKey namespaces request context values set by this package.
type ContextKey string

// Context keys for request-scoped values
const (
	// TraceIDKey is the key for the trace ID in the request context
	TraceIDKey ContextKey = "traceID"

	// AuthorizedKey marks a request that passed a view's authorization step.
	AuthorizedKey ContextKey = "routeAuthorized"

	// AuthContextKey carries the value returned by a view's authorizer.
	AuthContextKey ContextKey = "routeAuth"

	// CredentialsKey carries the verified bearer token payload.
	CredentialsKey ContextKey = "credentials"

	// TraceIDLength is the number of bytes in a trace ID.
	TraceIDLength = 16
)

// SetTraceID adds a fresh trace ID to the context.
func SetTraceID(ctx context.Context) context.Context {
	return context.WithValue(ctx, TraceIDKey, generateTraceID())
}

// GetTraceID retrieves the trace ID from the context, or "".
func GetTraceID(ctx context.Context) string {
	traceID, _ := ctx.Value(TraceIDKey).(string)
	return traceID
}

// WithAuthorization marks ctx as authorized and attaches authCtx when non-nil.
func WithAuthorization(ctx context.Context, authCtx any) context.Context {
	ctx = context.WithValue(ctx, AuthorizedKey, true)
	if authCtx != nil {
		ctx = context.WithValue(ctx, AuthContextKey, authCtx)
	}
	return ctx
}

// IsAuthorized reports whether the request passed view authorization.
func IsAuthorized(ctx context.Context) bool {
	ok, _ := ctx.Value(AuthorizedKey).(bool)
	return ok
}

// AuthContext returns the authorizer's attached value, if any.
func AuthContext(ctx context.Context) (any, bool) {
	v := ctx.Value(AuthContextKey)
	return v, v != nil
}

// WithCredentials attaches the verified token payload (or the value derived
// from it) to ctx.
func WithCredentials(ctx context.Context, creds any) context.Context {
	return context.WithValue(ctx, CredentialsKey, creds)
}

// Credentials returns the value stored by WithCredentials.
func Credentials(ctx context.Context) (any, bool) {
	v := ctx.Value(CredentialsKey)
	return v, v != nil
}

// generateTraceID returns a random UUID as 32 hex characters. If the random
// source fails it falls back to a time-derived value rather than a constant.
func generateTraceID() string {
	id, err := uuid.NewRandom()
	if err != nil {
		slog.Error("failed to generate random trace ID",
			"error", err,
			"fallback", "time-based generation")
		return generateFallbackTraceID()
	}
	return hex.EncodeToString(id[:])
}

func generateFallbackTraceID() string {
	fallbackID := make([]byte, TraceIDLength)
	now := time.Now()
	binary.BigEndian.PutUint64(fallbackID[:8], uint64(now.UnixNano()))
	binary.BigEndian.PutUint32(fallbackID[8:12], uint32(now.Nanosecond()))
	binary.BigEndian.PutUint32(fallbackID[12:16], uint32(now.Unix()))
	return hex.EncodeToString(fallbackID)
}
