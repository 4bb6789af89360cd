// Package router assembles the gateway's chi routes.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/pashumandi/mandi-gateway/internal/handler"
	"github.com/pashumandi/mandi-gateway/internal/middleware"
	"github.com/pashumandi/mandi-gateway/internal/platform/metrics"
	"go.uber.org/zap"
)

type Handlers struct {
	Listings  *handler.ListingHandler
	Locations *handler.LocationHandler
	Profiles  *handler.ProfileHandler
	Messages  *handler.MessageHandler
	PostAd    *handler.PostAdHandler
	Views     *handler.ViewHandler
	Sessions  *handler.SessionHandler
	Info      *handler.InfoHandler
	Health    *handler.HealthHandler
}

type Deps struct {
	Verifier   middleware.TokenVerifier
	Sessions   middleware.SessionResolver
	Roles      middleware.RoleResolver
	CookieName string
	Metrics    *metrics.MetricsManager
	Logger     *zap.Logger
}

func New(h Handlers, d Deps) *chi.Mux {
	mux := chi.NewRouter()
	mux.Use(middleware.RequestID)
	mux.Use(chimw.Recoverer)
	mux.Use(middleware.Logger(d.Logger))
	mux.Use(middleware.Metrics(d.Metrics))

	mux.Get("/healthz", h.Health.HandleHealth)

	mux.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(d.Verifier, d.Sessions, d.CookieName, d.Logger))
		gate := middleware.NewGate(d.Roles, d.Metrics, d.Logger)

		SetupSessionRoutes(r, h.Sessions, h.Info)
		SetupListingRoutes(r, gate, h.Listings, h.PostAd)
		r.Get("/api/locations", h.Locations.HandleLocations)
		SetupUserRoutes(r, gate, h.Profiles, h.Messages)
		SetupPostAdRoutes(r, gate, h.PostAd)
		SetupViewRoutes(r, gate, h.Views)
	})

	mux.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"not found","code":"not_found"}` + "\n"))
	})
	return mux
}
