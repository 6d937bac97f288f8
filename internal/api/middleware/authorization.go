package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/phrazzld/viewset/internal/api/shared"
	"github.com/phrazzld/viewset/internal/platform/logger"
	"github.com/phrazzld/viewset/internal/service/auth"
)

// DefaultAuthHeader is the header read when Authorization.HeaderName is empty.
const DefaultAuthHeader = "Authorization"

// Authorization verifies a bearer token and stores the resulting credentials
// in the request context (see shared.Credentials).
type Authorization struct {
	Verifier   auth.Verifier
	HeaderName string

	// PreAuth runs before the header is inspected. Returning false means the
	// hook wrote a response and the chain stops.
	PreAuth func(w http.ResponseWriter, r *http.Request) bool

	// Authorize maps verified claims to the stored credentials value. A nil
	// hook stores the claims; a nil result also stores the claims.
	Authorize func(r *http.Request, claims auth.Claims) (any, error)

	Logger *slog.Logger
}

// NewAuthorization creates bearer-token middleware.
func NewAuthorization(verifier auth.Verifier, headerName string) *Authorization {
	if verifier == nil {
		panic("verifier cannot be nil") // ALLOW-PANIC
	}
	return &Authorization{Verifier: verifier, HeaderName: headerName}
}

func (a *Authorization) header() string {
	if a.HeaderName == "" {
		return DefaultAuthHeader
	}
	return a.HeaderName
}

// Middleware returns the http middleware.
func (a *Authorization) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromContextOrDefault(r.Context(), a.Logger)

		if a.PreAuth != nil && !a.PreAuth(w, r) {
			return
		}

		raw := strings.TrimSpace(r.Header.Get(a.header()))
		if raw == "" {
			shared.RespondWithStatusError(w, r, shared.NewRequestError(http.StatusUnauthorized,
				fmt.Sprintf("Unauthorized. Please provide a %q header with your token", a.header())))
			return
		}
		token := stripBearer(raw)

		claims, err := a.Verifier.Verify(r.Context(), token)
		if err != nil {
			log.Debug("token verification failed", slog.String("error", err.Error()))
			shared.RespondWithStatusError(w, r, shared.NewAuthorizationError(err.Error()).Wrap(err))
			return
		}

		var creds any = claims
		if a.Authorize != nil {
			v, err := a.Authorize(r, claims)
			if err != nil {
				if se, ok := shared.AsStatusError(err); ok {
					shared.RespondWithStatusError(w, r, se)
					return
				}
				shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
					"Authentication error", err)
				return
			}
			if v != nil {
				creds = v
			}
		}

		next.ServeHTTP(w, r.WithContext(shared.WithCredentials(r.Context(), creds)))
	})
}

func stripBearer(value string) string {
	const prefix = "bearer "
	if len(value) >= len(prefix) && strings.EqualFold(value[:len(prefix)], prefix) {
		return strings.TrimSpace(value[len(prefix):])
	}
	return value
}

// ClaimsFromRequest returns verified token claims stored by Authorization.
func ClaimsFromRequest(r *http.Request) (auth.Claims, bool) {
	v, ok := shared.Credentials(r.Context())
	if !ok {
		return nil, false
	}
	claims, ok := v.(auth.Claims)
	return claims, ok
}
