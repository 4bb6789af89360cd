package handler

import (
	"context"
	"net/http"
	"strings"
	"unicode"

	"github.com/go-chi/chi/v5"
	"github.com/pashumandi/mandi-gateway/internal/domain"
	"github.com/pashumandi/mandi-gateway/internal/query"
	"go.uber.org/zap"
)

type ProfileService interface {
	CallerUserProfile(ctx context.Context) (query.Result[*domain.UserProfile], error)
	PublicProfile(ctx context.Context, p domain.Principal) (query.Result[*domain.PublicUserProfile], error)
	MobileNumber(ctx context.Context) (query.Result[*string], error)
	SaveCallerUserProfile(ctx context.Context, in domain.ProfileInput) error
	UpsertProfile(ctx context.Context, displayName, bio string, contactInfo *string) error
	SignUp(ctx context.Context, displayName, mobileNumber string) error
}

type ProfileHandler struct {
	profiles ProfileService
	logger   *zap.Logger
}

func NewProfileHandler(profiles ProfileService, logger *zap.Logger) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, logger: logger.Named("ProfileHandler")}
}

func trimmedPtr(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}

func requireDisplayName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", domain.NewValidationError("display_name", "Display name is required")
	}
	return name, nil
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsDigit(r) {
			n++
		}
	}
	return n
}

func (h *ProfileHandler) HandleGetMyProfile(w http.ResponseWriter, r *http.Request) {
	res, err := h.profiles.CallerUserProfile(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, res)
}

type saveProfileRequest struct {
	DisplayName  string  `json:"display_name"`
	Bio          string  `json:"bio"`
	ContactInfo  *string `json:"contact_info"`
	MobileNumber *string `json:"mobile_number"`
}

// HandleSaveProfile replaces the caller's whole profile.
func (h *ProfileHandler) HandleSaveProfile(w http.ResponseWriter, r *http.Request) {
	var req saveProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	name, err := requireDisplayName(req.DisplayName)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	err = h.profiles.SaveCallerUserProfile(r.Context(), domain.ProfileInput{
		DisplayName:  name,
		Bio:          strings.TrimSpace(req.Bio),
		ContactInfo:  trimmedPtr(req.ContactInfo),
		MobileNumber: trimmedPtr(req.MobileNumber),
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type upsertProfileRequest struct {
	DisplayName string  `json:"display_name"`
	Bio         string  `json:"bio"`
	ContactInfo *string `json:"contact_info"`
}

// HandleUpsertProfile updates the public profile fields and leaves the mobile
// number alone.
func (h *ProfileHandler) HandleUpsertProfile(w http.ResponseWriter, r *http.Request) {
	var req upsertProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	name, err := requireDisplayName(req.DisplayName)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.profiles.UpsertProfile(r.Context(), name, strings.TrimSpace(req.Bio), trimmedPtr(req.ContactInfo)); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type signUpRequest struct {
	DisplayName  string `json:"display_name"`
	MobileNumber string `json:"mobile_number"`
}

func (h *ProfileHandler) HandleSignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	name := strings.TrimSpace(req.DisplayName)
	if name == "" {
		writeError(w, r, h.logger, domain.NewValidationError("display_name", "Please enter your full name."))
		return
	}
	if countDigits(req.MobileNumber) < 10 {
		writeError(w, r, h.logger, domain.NewValidationError("mobile_number", "Please enter a valid 10-digit mobile number."))
		return
	}
	if err := h.profiles.SignUp(r.Context(), name, strings.TrimSpace(req.MobileNumber)); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, map[string]string{"status": "registered"})
}

func (h *ProfileHandler) HandleGetMobile(w http.ResponseWriter, r *http.Request) {
	res, err := h.profiles.MobileNumber(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, res)
}

func (h *ProfileHandler) HandleGetPublicProfile(w http.ResponseWriter, r *http.Request) {
	p := domain.ParsePrincipal(chi.URLParam(r, "principal"))
	if p == "" {
		writeError(w, r, h.logger, domain.NewValidationError("principal", "invalid principal"))
		return
	}
	res, err := h.profiles.PublicProfile(r.Context(), p)
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
