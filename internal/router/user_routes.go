package router

import (
	"github.com/go-chi/chi/v5"
	"github.com/pashumandi/mandi-gateway/internal/guard"
	"github.com/pashumandi/mandi-gateway/internal/handler"
	"github.com/pashumandi/mandi-gateway/internal/middleware"
)

// SetupUserRoutes configures profile, sign-up and messaging routes.
func SetupUserRoutes(r chi.Router, gate *middleware.Gate, profiles *handler.ProfileHandler, messages *handler.MessageHandler) {
	r.Get("/api/profiles/{principal}", profiles.HandleGetPublicProfile)

	r.Group(func(auth chi.Router) {
		auth.Use(gate.Require(guard.RequireSignedIn))

		auth.Get("/api/me/profile", profiles.HandleGetMyProfile)
		auth.Put("/api/me/profile", profiles.HandleSaveProfile)
		auth.Patch("/api/me/profile", profiles.HandleUpsertProfile)
		auth.Get("/api/me/mobile", profiles.HandleGetMobile)
		auth.Post("/api/signup", profiles.HandleSignUp)

		auth.Get("/api/messages", messages.HandleInbox)
		auth.Get("/api/messages/{principal}", messages.HandleThread)
		auth.Post("/api/messages/{principal}", messages.HandleSend)
	})
}
