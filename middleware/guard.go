package middleware

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"

	goFleet "github.com/MrEthical07/goFleet"
)

// MessageUnauthenticated is the body message for rejected bearer tokens.
const MessageUnauthenticated = "Please authenticate"

// Authenticator resolves a bearer access token. *goFleet.Engine implements it.
type Authenticator interface {
	Authenticate(ctx context.Context, bearer string) (goFleet.Principal, error)
}

type principalContextKey struct{}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p goFleet.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext returns the principal stored by [Guard].
func PrincipalFromContext(ctx context.Context) (goFleet.Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(goFleet.Principal)
	return p, ok
}

// TenantFromRequest returns the tenant of the authenticated caller.
func TenantFromRequest(r *http.Request) (string, bool) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok || p.TenantID == "" {
		return "", false
	}
	return p.TenantID, true
}

// Guard rejects requests without a valid bearer access token with 401.
func Guard(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth == nil {
				WriteError(w, http.StatusUnauthorized, MessageUnauthenticated)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				WriteError(w, http.StatusUnauthorized, MessageUnauthenticated)
				return
			}

			p, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				WriteError(w, http.StatusUnauthorized, MessageUnauthenticated)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// RequestContext attaches the client address and User-Agent to the request
// context so the Engine can put them on audit events.
func RequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := goFleet.WithClientIP(r.Context(), ClientIP(r))
		ctx = goFleet.WithUserAgent(ctx, r.UserAgent())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClientIP returns the host part of the connection's remote address.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// WriteError writes the {"code", "message"} error body.
func WriteError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}{status, message})
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
