package handler

import (
	"context"
	"net/http"

	"github.com/pashumandi/mandi-gateway/internal/usecase/support"
	"go.uber.org/zap"
)

type SupportService interface {
	Helpline() support.Helpline
	Terms() []support.TermsSection
	Submit(ctx context.Context, req support.TicketRequest) (support.Ticket, error)
}

type InfoHandler struct {
	support SupportService
	logger  *zap.Logger
}

func NewInfoHandler(s SupportService, logger *zap.Logger) *InfoHandler {
	return &InfoHandler{support: s, logger: logger.Named("InfoHandler")}
}

func (h *InfoHandler) HandleHelpline(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.logger, http.StatusOK, h.support.Helpline())
}

func (h *InfoHandler) HandleTerms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.logger, http.StatusOK, h.support.Terms())
}

func (h *InfoHandler) HandleSubmitTicket(w http.ResponseWriter, r *http.Request) {
	var req support.TicketRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	t, err := h.support.Submit(r.Context(), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusAccepted, map[string]string{
		"ticket_id": t.ID,
		"message":   "Thank you! Our team will contact you shortly.",
	})
}

// ReadinessProbe reports whether the backend connection is up.
type ReadinessProbe interface {
	Ready() bool
}

type HealthHandler struct {
	probe  ReadinessProbe
	logger *zap.Logger
}

func NewHealthHandler(probe ReadinessProbe, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{probe: probe, logger: logger.Named("HealthHandler")}
}

// HandleHealth is liveness plus backend readiness; the gateway keeps serving
// cached and loading answers while the backend is down, so it stays 200.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	backend := "ready"
	if !h.probe.Ready() {
		backend = "connecting"
	}
	writeJSON(w, h.logger, http.StatusOK, map[string]string{"status": "ok", "backend": backend})
}
