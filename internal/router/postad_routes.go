package router

import (
	"github.com/go-chi/chi/v5"
	"github.com/pashumandi/mandi-gateway/internal/guard"
	"github.com/pashumandi/mandi-gateway/internal/handler"
	"github.com/pashumandi/mandi-gateway/internal/middleware"
)

func SetupPostAdRoutes(r chi.Router, gate *middleware.Gate, h *handler.PostAdHandler) {
	r.Route("/api/post-ad", func(pr chi.Router) {
		pr.Use(gate.Require(guard.RequireSignedIn))

		pr.Get("/", h.HandleGetDraft)
		pr.Patch("/", h.HandleUpdateDraft)
		pr.Delete("/", h.HandleDiscard)
		pr.Post("/photos", h.HandleAddPhotos)
		pr.Delete("/photos/{index}", h.HandleRemovePhoto)
		pr.Post("/next", h.HandleNext)
		pr.Post("/back", h.HandleBack)
		pr.Get("/quote", h.HandleDraftQuote)
		pr.Post("/publish", h.HandlePublish)
	})
}
