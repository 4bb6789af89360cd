package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/pashumandi/mandi-gateway/internal/identity"
	"go.uber.org/zap"
)

// TokenVerifier checks bearer tokens presented directly by API clients.
type TokenVerifier interface {
	Verify(token string) (*identity.Identity, error)
}

// SessionResolver looks up the state of a cookie session.
type SessionResolver interface {
	Resolve(ctx context.Context, sessionID string) (identity.State, error)
}

// Authenticate attaches the caller's identity state to the request. A bearer
// token wins over the session cookie; requests with neither are anonymous.
// A session that is still initializing or logging in is passed on as such so
// guards can answer "loading" instead of "denied".
func Authenticate(verifier TokenVerifier, sessions SessionResolver, cookieName string, logger *zap.Logger) func(http.Handler) http.Handler {
	logger = logger.Named("Auth")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if authHeader := r.Header.Get("Authorization"); authHeader != "" {
				parts := strings.Fields(authHeader)
				if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
					writeJSON(w, http.StatusUnauthorized, errorBody{Error: "authorization header format must be Bearer {token}", Code: "unauthenticated"})
					return
				}
				id, err := verifier.Verify(parts[1])
				if err != nil {
					logger.Debug("Rejected bearer token", zap.Error(err))
					writeJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid or expired token", Code: "unauthenticated"})
					return
				}
				next.ServeHTTP(w, r.WithContext(identity.WithIdentity(ctx, *id)))
				return
			}

			state := identity.Anonymous
			if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
				s, err := sessions.Resolve(ctx, c.Value)
				if err != nil {
					logger.Warn("Session lookup failed, continuing anonymous", zap.Error(err))
				} else {
					state = s
					ctx = context.WithValue(ctx, SessionIDCtxKey, c.Value)
				}
			}
			next.ServeHTTP(w, r.WithContext(identity.WithState(ctx, state)))
		})
	}
}
