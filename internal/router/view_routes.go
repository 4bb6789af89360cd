package router

import (
	"github.com/go-chi/chi/v5"
	"github.com/pashumandi/mandi-gateway/internal/handler"
	"github.com/pashumandi/mandi-gateway/internal/middleware"
	"github.com/pashumandi/mandi-gateway/internal/usecase/dashboard"
)

// SetupViewRoutes exposes every dashboard view twice: as an API resource and
// as a page path that bounces denied browsers back to "/".
func SetupViewRoutes(r chi.Router, gate *middleware.Gate, h *handler.ViewHandler) {
	r.Get("/api/views", h.HandleListViews)
	r.With(gate.RequireFor(handler.ViewRequirement)).Get("/api/views/{view}", h.HandleView)

	for _, v := range dashboard.Views() {
		r.With(gate.Page(v.Requirement)).Get("/"+v.Name, h.Page(v.Name))
	}
}
