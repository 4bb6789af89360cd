package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/pashumandi/mandi-gateway/internal/domain"
	"github.com/pashumandi/mandi-gateway/internal/usecase/posting"
	"go.uber.org/zap"
)

type PostingService interface {
	Draft(ctx context.Context) (posting.Draft, error)
	Update(ctx context.Context, u posting.DraftUpdate) (posting.Draft, error)
	AddPhotos(ctx context.Context, photos []string) (posting.Draft, error)
	RemovePhoto(ctx context.Context, index int) (posting.Draft, error)
	Next(ctx context.Context) (posting.Draft, error)
	Back(ctx context.Context) (posting.Draft, error)
	Discard(ctx context.Context) error
	Quote(ctx context.Context, code string, apply bool) (posting.Quote, error)
	Publish(ctx context.Context, req posting.PublishRequest) (posting.PublishResult, error)
}

type Quoter interface {
	Quote(isVip bool, code string, apply bool) (posting.Quote, error)
}

type PostAdHandler struct {
	posting PostingService
	pricer  Quoter
	logger  *zap.Logger
}

func NewPostAdHandler(posting PostingService, pricer Quoter, logger *zap.Logger) *PostAdHandler {
	return &PostAdHandler{posting: posting, pricer: pricer, logger: logger.Named("PostAdHandler")}
}

func (h *PostAdHandler) respondDraft(w http.ResponseWriter, r *http.Request, d posting.Draft, err error) {
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, d)
}

func (h *PostAdHandler) HandleGetDraft(w http.ResponseWriter, r *http.Request) {
	d, err := h.posting.Draft(r.Context())
	h.respondDraft(w, r, d, err)
}

func (h *PostAdHandler) HandleUpdateDraft(w http.ResponseWriter, r *http.Request) {
	var u posting.DraftUpdate
	if err := decodeJSON(w, r, &u); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	d, err := h.posting.Update(r.Context(), u)
	h.respondDraft(w, r, d, err)
}

type addPhotosRequest struct {
	Photos []string `json:"photos"`
}

func (h *PostAdHandler) HandleAddPhotos(w http.ResponseWriter, r *http.Request) {
	var req addPhotosRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	d, err := h.posting.AddPhotos(r.Context(), req.Photos)
	h.respondDraft(w, r, d, err)
}

func (h *PostAdHandler) HandleRemovePhoto(w http.ResponseWriter, r *http.Request) {
	idx, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, r, h.logger, domain.NewValidationError("index", "invalid photo index"))
		return
	}
	d, err := h.posting.RemovePhoto(r.Context(), idx)
	h.respondDraft(w, r, d, err)
}

func (h *PostAdHandler) HandleNext(w http.ResponseWriter, r *http.Request) {
	d, err := h.posting.Next(r.Context())
	h.respondDraft(w, r, d, err)
}

func (h *PostAdHandler) HandleBack(w http.ResponseWriter, r *http.Request) {
	d, err := h.posting.Back(r.Context())
	h.respondDraft(w, r, d, err)
}

func (h *PostAdHandler) HandleDiscard(w http.ResponseWriter, r *http.Request) {
	if err := h.posting.Discard(r.Context()); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type quoteResponse struct {
	posting.Quote
	Error string `json:"error,omitempty"`
}

// promoRejection reports whether err is a promo code problem that still
// comes with a usable quote.
func promoRejection(err error) bool {
	return errors.Is(err, domain.ErrInvalidPromo) || errors.Is(err, domain.ErrPromoNotForVIP) || errors.Is(err, domain.ErrEmptyPromo)
}

func (h *PostAdHandler) writeQuote(w http.ResponseWriter, r *http.Request, q posting.Quote, err error) {
	if err != nil && !promoRejection(err) {
		writeError(w, r, h.logger, err)
		return
	}
	resp := quoteResponse{Quote: q}
	if err != nil {
		resp.Error = q.Message
	}
	writeJSON(w, h.logger, http.StatusOK, resp)
}

// HandleDraftQuote prices the caller's draft: ?code=&apply=true.
func (h *PostAdHandler) HandleDraftQuote(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	apply, _ := strconv.ParseBool(q.Get("apply"))
	quote, err := h.posting.Quote(r.Context(), q.Get("code"), apply)
	h.writeQuote(w, r, quote, err)
}

// HandlePublicQuote prices an ad without a draft: ?vip=&code=&apply=.
func (h *PostAdHandler) HandlePublicQuote(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	vip, _ := strconv.ParseBool(q.Get("vip"))
	apply, _ := strconv.ParseBool(q.Get("apply"))
	quote, err := h.pricer.Quote(vip, q.Get("code"), apply)
	h.writeQuote(w, r, quote, err)
}

func (h *PostAdHandler) HandlePublish(w http.ResponseWriter, r *http.Request) {
	var req posting.PublishRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	res, err := h.posting.Publish(r.Context(), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, map[string]any{
		"listing_id": res.ListingID,
		"quote":      res.Quote,
		"message":    "Ad posted! Awaiting admin approval.",
	})
}
