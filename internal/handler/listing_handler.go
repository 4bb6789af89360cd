package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/pashumandi/mandi-gateway/internal/domain"
	"github.com/pashumandi/mandi-gateway/internal/query"
	"github.com/pashumandi/mandi-gateway/internal/usecase/browse"
	"go.uber.org/zap"
)

type ListingService interface {
	Listing(ctx context.Context, id domain.ListingID) (query.Result[*domain.Listing], error)
	MyListings(ctx context.Context) (query.Result[[]domain.Listing], error)
	UpdateListing(ctx context.Context, id domain.ListingID, in domain.ListingUpdate) error
	DeleteListing(ctx context.Context, id domain.ListingID) error
	DeleteListingAdmin(ctx context.Context, id domain.ListingID) error
	ApproveListing(ctx context.Context, id domain.ListingID) error
	RejectListing(ctx context.Context, id domain.ListingID) error
}

type Browser interface {
	Browse(ctx context.Context, f browse.Filter) (browse.Result, error)
}

type ListingHandler struct {
	listings ListingService
	browser  Browser
	logger   *zap.Logger
}

func NewListingHandler(listings ListingService, browser Browser, logger *zap.Logger) *ListingHandler {
	return &ListingHandler{listings: listings, browser: browser, logger: logger.Named("ListingHandler")}
}

// HandleBrowse serves the public feed filtered by ?q=, ?category= and ?location=.
func (h *ListingHandler) HandleBrowse(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := h.browser.Browse(r.Context(), browse.Filter{
		Query:    q.Get("q"),
		Category: q.Get("category"),
		Location: q.Get("location"),
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, res)
}

func (h *ListingHandler) HandleGetListing(w http.ResponseWriter, r *http.Request) {
	id, err := listingIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	res, err := h.listings.Listing(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if res.Data == nil && !res.IsLoading && !res.IsError {
		writeError(w, r, h.logger, domain.ErrNotFound)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, res)
}

func (h *ListingHandler) HandleMyListings(w http.ResponseWriter, r *http.Request) {
	res, err := h.listings.MyListings(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, res)
}

type updateListingRequest struct {
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Price       int64                 `json:"price"`
	Category    domain.AnimalCategory `json:"category"`
	Location    string                `json:"location"`
	PhotoURLs   []string              `json:"photo_urls"`
	IsActive    bool                  `json:"is_active"`
	IsVip       bool                  `json:"is_vip"`
}

func (req updateListingRequest) validate() error {
	switch {
	case strings.TrimSpace(req.Title) == "":
		return domain.NewValidationError("title", "Please enter a title")
	case !req.Category.Valid():
		return domain.NewValidationError("category", "Please select a category")
	case req.Price < 0:
		return domain.NewValidationError("price", "Please enter a valid price")
	}
	return nil
}

func (h *ListingHandler) HandleUpdateListing(w http.ResponseWriter, r *http.Request) {
	id, err := listingIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req updateListingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if req.PhotoURLs == nil {
		req.PhotoURLs = []string{}
	}
	err = h.listings.UpdateListing(r.Context(), id, domain.ListingUpdate{
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		Price:       req.Price,
		Category:    req.Category,
		Location:    strings.TrimSpace(req.Location),
		PhotoURLs:   req.PhotoURLs,
		IsActive:    req.IsActive,
		IsVip:       req.IsVip,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleDeactivate hides an owned listing while keeping every other field.
func (h *ListingHandler) HandleDeactivate(w http.ResponseWriter, r *http.Request) {
	id, err := listingIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	cur, err := h.listings.Listing(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	switch {
	case cur.IsLoading:
		writeError(w, r, h.logger, domain.ErrNotReady)
		return
	case cur.IsError:
		writeError(w, r, h.logger, domain.ErrTransient)
		return
	case cur.Data == nil:
		writeError(w, r, h.logger, domain.ErrNotFound)
		return
	}
	l := cur.Data
	err = h.listings.UpdateListing(r.Context(), id, domain.ListingUpdate{
		Title:       l.Title,
		Description: l.Description,
		Price:       l.Price,
		Category:    l.Category,
		Location:    l.Location,
		PhotoURLs:   l.PhotoURLs,
		IsActive:    false,
		IsVip:       l.IsVip,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ListingHandler) HandleDeleteListing(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, "delete", h.listings.DeleteListing)
}

func (h *ListingHandler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, "approve", h.listings.ApproveListing)
}

func (h *ListingHandler) HandleReject(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, "reject", h.listings.RejectListing)
}

func (h *ListingHandler) HandleAdminDelete(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, "admin_delete", h.listings.DeleteListingAdmin)
}

func (h *ListingHandler) moderate(w http.ResponseWriter, r *http.Request, action string, op func(context.Context, domain.ListingID) error) {
	id, err := listingIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := op(r.Context(), id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.logger.Info("Listing action applied", zap.String("action", action), zap.Uint64("listing_id", uint64(id)))
	w.WriteHeader(http.StatusNoContent)
}
