package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/pashumandi/mandi-gateway/internal/config"
	"github.com/pashumandi/mandi-gateway/internal/domain"
	"github.com/pashumandi/mandi-gateway/internal/identity"
	"github.com/pashumandi/mandi-gateway/internal/middleware"
	"github.com/pashumandi/mandi-gateway/internal/query"
	"github.com/pashumandi/mandi-gateway/internal/roles"
	"go.uber.org/zap"
)

type SessionManager interface {
	Begin(ctx context.Context, sessionID string) (string, identity.State, error)
	Login(ctx context.Context, prevID, credential string) (string, identity.State, error)
	Clear(ctx context.Context, sessionID string) error
}

type CallerProfileSource interface {
	CallerUserProfile(ctx context.Context) (query.Result[*domain.UserProfile], error)
}

type SessionHandler struct {
	sessions SessionManager
	roles    middleware.RoleResolver
	profiles CallerProfileSource
	cfg      config.AuthConfig
	logger   *zap.Logger
}

func NewSessionHandler(sessions SessionManager, resolver middleware.RoleResolver, profiles CallerProfileSource, cfg config.AuthConfig, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		roles:    resolver,
		profiles: profiles,
		cfg:      cfg,
		logger:   logger.Named("SessionHandler"),
	}
}

type sessionResponse struct {
	Status            identity.Status  `json:"status"`
	Authenticated     bool             `json:"authenticated"`
	Principal         domain.Principal `json:"principal,omitempty"`
	Roles             roles.Flags      `json:"roles"`
	NeedsProfileSetup bool             `json:"needs_profile_setup"`
}

func (h *SessionHandler) describe(ctx context.Context, state identity.State) sessionResponse {
	resp := sessionResponse{
		Status:        state.Status,
		Authenticated: state.IsAuthenticated(),
		Principal:     state.Principal(),
	}
	if !resp.Authenticated {
		if state.Settled() {
			resp.Roles = roles.Flags{Resolved: true}
		}
		return resp
	}
	ctx = identity.WithState(ctx, state)
	resp.Roles = h.roles.Resolve(ctx, state)

	// Only a settled "no profile" answer asks for setup; a failed lookup
	// must not push an existing user through sign-up again.
	res, err := h.profiles.CallerUserProfile(ctx)
	if err != nil {
		h.logger.Warn("Profile lookup failed", zap.String("principal", state.Principal().Short()), zap.Error(err))
		return resp
	}
	resp.NeedsProfileSetup = !res.IsLoading && !res.IsError && res.Data == nil
	return resp
}

func (h *SessionHandler) setCookie(w http.ResponseWriter, value string, maxAge time.Duration) {
	c := &http.Cookie{
		Name:     h.cfg.CookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
	if maxAge > 0 {
		c.MaxAge = int(maxAge.Seconds())
	} else {
		c.MaxAge = -1
	}
	http.SetCookie(w, c)
}

// HandleGetSession reports the state the auth middleware resolved.
func (h *SessionHandler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.logger, http.StatusOK, h.describe(r.Context(), identity.FromContext(r.Context())))
}

// HandleBegin opens a session, or reopens the one named by the cookie if the
// gateway issued it, and restores any identity that survived.
func (h *SessionHandler) HandleBegin(w http.ResponseWriter, r *http.Request) {
	id, state, err := h.sessions.Begin(r.Context(), middleware.SessionIDFrom(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.setCookie(w, id, h.cfg.SessionTTL)
	writeJSON(w, h.logger, http.StatusOK, h.describe(r.Context(), state))
}

type loginRequest struct {
	Credential string `json:"credential"`
}

func (h *SessionHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if strings.TrimSpace(req.Credential) == "" {
		writeError(w, r, h.logger, domain.NewValidationError("credential", "credential is required"))
		return
	}

	sessionID, state, err := h.sessions.Login(r.Context(), middleware.SessionIDFrom(r.Context()), req.Credential)
	if err != nil {
		h.logger.Info("Login failed", zap.Error(err))
		writeError(w, r, h.logger, domain.ErrUnauthenticated)
		return
	}
	// The session ID is always replaced on login.
	h.setCookie(w, sessionID, h.cfg.SessionTTL)
	writeJSON(w, h.logger, http.StatusOK, h.describe(r.Context(), state))
}

func (h *SessionHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Clear(r.Context(), middleware.SessionIDFrom(r.Context())); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.setCookie(w, "", 0)
	w.WriteHeader(http.StatusNoContent)
}
