package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pashumandi/mandi-gateway/internal/domain"
	"github.com/pashumandi/mandi-gateway/internal/usecase/messaging"
	"go.uber.org/zap"
)

type MessagingService interface {
	Inbox(ctx context.Context, selected domain.Principal) (messaging.Inbox, error)
	Thread(ctx context.Context, other domain.Principal) (messaging.Thread, error)
	Send(ctx context.Context, recipient domain.Principal, listingID *domain.ListingID, text string) error
}

type MessageHandler struct {
	messages MessagingService
	logger   *zap.Logger
}

func NewMessageHandler(messages MessagingService, logger *zap.Logger) *MessageHandler {
	return &MessageHandler{messages: messages, logger: logger.Named("MessageHandler")}
}

// HandleInbox lists conversations; ?with= deep-links a counterparty from a
// listing page.
func (h *MessageHandler) HandleInbox(w http.ResponseWriter, r *http.Request) {
	inbox, err := h.messages.Inbox(r.Context(), domain.ParsePrincipal(r.URL.Query().Get("with")))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, inbox)
}

func (h *MessageHandler) HandleThread(w http.ResponseWriter, r *http.Request) {
	th, err := h.messages.Thread(r.Context(), domain.ParsePrincipal(chi.URLParam(r, "principal")))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, th)
}

type sendMessageRequest struct {
	Text      string            `json:"text"`
	ListingID *domain.ListingID `json:"listing_id"`
}

func (h *MessageHandler) HandleSend(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	recipient := domain.ParsePrincipal(chi.URLParam(r, "principal"))
	if err := h.messages.Send(r.Context(), recipient, req.ListingID, req.Text); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	th, err := h.messages.Thread(r.Context(), recipient)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, th)
}
