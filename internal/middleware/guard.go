package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/pashumandi/mandi-gateway/internal/guard"
	"github.com/pashumandi/mandi-gateway/internal/identity"
	"github.com/pashumandi/mandi-gateway/internal/platform/metrics"
	"github.com/pashumandi/mandi-gateway/internal/roles"
	"go.uber.org/zap"
)

// LoadingRetryAfter is the Retry-After value, in seconds, sent while the
// caller's identity or roles are still being established.
const LoadingRetryAfter = "1"

type RoleResolver interface {
	Resolve(ctx context.Context, state identity.State) roles.Flags
}

// RequirementFunc picks the requirement for a request. ok=false means the
// target does not exist.
type RequirementFunc func(r *http.Request) (req guard.Requirement, ok bool)

type Gate struct {
	roles   RoleResolver
	metrics *metrics.MetricsManager
	logger  *zap.Logger
}

func NewGate(resolver RoleResolver, m *metrics.MetricsManager, logger *zap.Logger) *Gate {
	return &Gate{roles: resolver, metrics: m, logger: logger.Named("Gate")}
}

// Require guards API routes: loading is 503 with Retry-After, a missing
// identity is 401 and a missing role is 403.
func (g *Gate) Require(req guard.Requirement) func(http.Handler) http.Handler {
	return g.guard(func(*http.Request) (guard.Requirement, bool) { return req, true }, false)
}

// RequireFor is Require with a per-request requirement.
func (g *Gate) RequireFor(fn RequirementFunc) func(http.Handler) http.Handler {
	return g.guard(fn, false)
}

// Page guards browser navigations: a denied caller is sent back to "/".
func (g *Gate) Page(req guard.Requirement) func(http.Handler) http.Handler {
	return g.guard(func(*http.Request) (guard.Requirement, bool) { return req, true }, true)
}

func (g *Gate) guard(fn RequirementFunc, page bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req, ok := fn(r)
			if !ok {
				writeJSON(w, http.StatusNotFound, errorBody{Error: "not found", Code: "not_found"})
				return
			}

			state := identity.FromContext(r.Context())
			var flags roles.Flags
			if req.NeedsRoles() && state.IsAuthenticated() {
				flags = g.roles.Resolve(r.Context(), state)
			}
			decision := guard.Evaluate(state, flags, req)
			g.metrics.GuardDecision(req.String(), decision.String())

			switch decision {
			case guard.Granted:
				ctx := context.WithValue(r.Context(), FlagsCtxKey, flags)
				next.ServeHTTP(w, r.WithContext(ctx))
			case guard.Loading:
				w.Header().Set("Retry-After", LoadingRetryAfter)
				writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "please wait and retry", Code: "loading", State: "loading"})
			default:
				g.logger.Debug("Access denied",
					zap.String("requirement", req.String()),
					zap.String("path", r.URL.Path),
					zap.Bool("authenticated", state.IsAuthenticated()),
				)
				if page || wantsHTML(r) {
					http.Redirect(w, r, "/", http.StatusFound)
					return
				}
				if !state.IsAuthenticated() {
					writeJSON(w, http.StatusUnauthorized, errorBody{Error: "please log in to continue", Code: "unauthenticated"})
					return
				}
				writeJSON(w, http.StatusForbidden, errorBody{Error: "access denied", Code: "forbidden"})
			}
		})
	}
}

func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}
