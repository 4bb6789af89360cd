package handler

import (
	"net/http"

	"github.com/pashumandi/mandi-gateway/internal/usecase/browse"
	"go.uber.org/zap"
)

type LocationSearcher interface {
	Search(q string) browse.LocationOptions
}

type LocationHandler struct {
	locations LocationSearcher
	logger    *zap.Logger
}

func NewLocationHandler(locations LocationSearcher, logger *zap.Logger) *LocationHandler {
	return &LocationHandler{locations: locations, logger: logger.Named("LocationHandler")}
}

// HandleLocations lists the picker's states matching ?q=.
func (h *LocationHandler) HandleLocations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.logger, http.StatusOK, h.locations.Search(r.URL.Query().Get("q")))
}
