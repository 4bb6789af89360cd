package router

import (
	"github.com/go-chi/chi/v5"
	"github.com/pashumandi/mandi-gateway/internal/handler"
)

// SetupSessionRoutes holds the public identity and information endpoints.
func SetupSessionRoutes(r chi.Router, sessions *handler.SessionHandler, info *handler.InfoHandler) {
	r.Get("/api/session", sessions.HandleGetSession)
	r.Post("/api/session", sessions.HandleBegin)
	r.Post("/api/session/login", sessions.HandleLogin)
	r.Post("/api/session/logout", sessions.HandleLogout)

	r.Get("/api/helpline", info.HandleHelpline)
	r.Post("/api/helpline/tickets", info.HandleSubmitTicket)
	r.Get("/api/terms", info.HandleTerms)
}
