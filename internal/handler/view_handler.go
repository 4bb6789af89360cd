package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pashumandi/mandi-gateway/internal/guard"
	"github.com/pashumandi/mandi-gateway/internal/usecase/dashboard"
	"go.uber.org/zap"
)

type ViewRenderer interface {
	Render(ctx context.Context, name string) (dashboard.Page, error)
}

type ViewHandler struct {
	views  ViewRenderer
	logger *zap.Logger
}

func NewViewHandler(views ViewRenderer, logger *zap.Logger) *ViewHandler {
	return &ViewHandler{views: views, logger: logger.Named("ViewHandler")}
}

// ViewRequirement reads the {view} route parameter; unknown views have no
// requirement and are reported as missing.
func ViewRequirement(r *http.Request) (guard.Requirement, bool) {
	v, ok := dashboard.Lookup(chi.URLParam(r, "view"))
	if !ok {
		return guard.RequireNone, false
	}
	return v.Requirement, true
}

func (h *ViewHandler) HandleView(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, chi.URLParam(r, "view"))
}

// Page serves one named view at its own path.
func (h *ViewHandler) Page(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.render(w, r, name)
	}
}

func (h *ViewHandler) render(w http.ResponseWriter, r *http.Request, name string) {
	page, err := h.views.Render(r.Context(), name)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, page)
}

type viewEntry struct {
	Name        string `json:"name"`
	Title       string `json:"title"`
	Requirement string `json:"requirement"`
}

// HandleListViews is the navigation menu; guards still decide access.
func (h *ViewHandler) HandleListViews(w http.ResponseWriter, r *http.Request) {
	all := dashboard.Views()
	out := make([]viewEntry, 0, len(all))
	for _, v := range all {
		out = append(out, viewEntry{Name: v.Name, Title: v.Title, Requirement: v.Requirement.String()})
	}
	writeJSON(w, h.logger, http.StatusOK, out)
}
