package router

import (
	"github.com/go-chi/chi/v5"
	"github.com/pashumandi/mandi-gateway/internal/guard"
	"github.com/pashumandi/mandi-gateway/internal/handler"
	"github.com/pashumandi/mandi-gateway/internal/middleware"
)

func SetupListingRoutes(r chi.Router, gate *middleware.Gate, h *handler.ListingHandler, postAd *handler.PostAdHandler) {
	r.Get("/api/listings", h.HandleBrowse)
	r.Get("/api/listings/{id}", h.HandleGetListing)
	r.Get("/api/payment/quote", postAd.HandlePublicQuote)

	r.Group(func(auth chi.Router) {
		auth.Use(gate.Require(guard.RequireSignedIn))
		auth.Get("/api/me/listings", h.HandleMyListings)
		auth.Put("/api/listings/{id}", h.HandleUpdateListing)
		auth.Post("/api/listings/{id}/deactivate", h.HandleDeactivate)
		auth.Delete("/api/listings/{id}", h.HandleDeleteListing)
	})

	r.Group(func(admin chi.Router) {
		admin.Use(gate.Require(guard.RequireAdmin))
		admin.Post("/api/admin/listings/{id}/approve", h.HandleApprove)
		admin.Post("/api/admin/listings/{id}/reject", h.HandleReject)
		admin.Delete("/api/admin/listings/{id}", h.HandleAdminDelete)
	})

	// The owner view approves too, under its own role.
	r.With(gate.Require(guard.RequireOwner)).Post("/api/owner/listings/{id}/approve", h.HandleApprove)
}
