package posting

import (
	"encoding/base64"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pashumandi/mandi-gateway/internal/config"
	"github.com/pashumandi/mandi-gateway/internal/domain"
)

type Step int

const (
	StepDetails Step = iota + 1
	StepPhotos
	StepPrice
	StepLocation
	StepReview
)

var stepNames = map[Step]string{
	StepDetails:  "details",
	StepPhotos:   "photos",
	StepPrice:    "price",
	StepLocation: "location",
	StepReview:   "review",
}

func (s Step) String() string {
	if n, ok := stepNames[s]; ok {
		return n
	}
	return "unknown"
}

// Draft is an unfinished ad. Price stays nil until the user enters one so an
// untouched price is distinguishable from a free animal.
type Draft struct {
	Step        Step                  `json:"step"`
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Category    domain.AnimalCategory `json:"category"`
	Photos      []string              `json:"photos"`
	Price       *int64                `json:"price,omitempty"`
	IsVip       bool                  `json:"is_vip"`
	Location    string                `json:"location"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

func newDraft() Draft {
	return Draft{Step: StepDetails, Photos: []string{}}
}

// DraftUpdate patches a draft. Nil fields are left alone.
type DraftUpdate struct {
	Title       *string                `json:"title"`
	Description *string                `json:"description"`
	Category    *domain.AnimalCategory `json:"category"`
	Price       *int64                 `json:"price"`
	IsVip       *bool                  `json:"is_vip"`
	Location    *string                `json:"location"`
}

func (d *Draft) apply(u DraftUpdate) {
	if u.Title != nil {
		d.Title = *u.Title
	}
	if u.Description != nil {
		d.Description = *u.Description
	}
	if u.Category != nil {
		d.Category = *u.Category
	}
	if u.Price != nil {
		p := *u.Price
		d.Price = &p
	}
	if u.IsVip != nil {
		d.IsVip = *u.IsVip
	}
	if u.Location != nil {
		d.Location = *u.Location
	}
}

// NewListing converts a complete draft into the createListing payload.
func (d Draft) NewListing() domain.NewListing {
	var price int64
	if d.Price != nil {
		price = *d.Price
	}
	return domain.NewListing{
		Title:       strings.TrimSpace(d.Title),
		Description: strings.TrimSpace(d.Description),
		Price:       price,
		Category:    d.Category,
		Location:    strings.TrimSpace(d.Location),
		PhotoURLs:   append([]string{}, d.Photos...),
		IsVip:       d.IsVip,
	}
}

type validator struct {
	cfg config.PostingConfig
}

func (v validator) step(d Draft, s Step) error {
	switch s {
	case StepDetails:
		title := strings.TrimSpace(d.Title)
		if title == "" {
			return domain.NewValidationError("title", "Please enter a title")
		}
		if utf8.RuneCountInString(title) > v.cfg.MaxTitleLength {
			return domain.NewValidationError("title", "Title is too long")
		}
		desc := strings.TrimSpace(d.Description)
		if desc == "" {
			return domain.NewValidationError("description", "Please enter a description")
		}
		if utf8.RuneCountInString(desc) > v.cfg.MaxDescription {
			return domain.NewValidationError("description", "Description is too long")
		}
		if !d.Category.Valid() {
			return domain.NewValidationError("category", "Please select a category")
		}
	case StepPhotos:
		if len(d.Photos) > v.cfg.MaxPhotos {
			return domain.NewValidationError("photos", "Too many photos")
		}
	case StepPrice:
		if d.Price == nil || *d.Price < 0 {
			return domain.NewValidationError("price", "Please enter a valid price")
		}
	case StepLocation:
		if strings.TrimSpace(d.Location) == "" {
			return domain.NewValidationError("location", "Please select a location")
		}
	}
	return nil
}

// all validates every step, stopping at the first failure.
func (v validator) all(d Draft) error {
	for s := StepDetails; s < StepReview; s++ {
		if err := v.step(d, s); err != nil {
			return err
		}
	}
	return nil
}

// photo checks one embedded image. Only base64 data URLs are accepted.
func (v validator) photo(dataURL string) error {
	if !strings.HasPrefix(dataURL, "data:image/") {
		return domain.NewValidationError("photos", "Photos must be images")
	}
	header, payload, ok := strings.Cut(dataURL, ",")
	if !ok || !strings.HasSuffix(header, ";base64") {
		return domain.NewValidationError("photos", "Failed to read image files. Please try again.")
	}
	if v.cfg.MaxPhotoSizeBytes > 0 && base64.StdEncoding.DecodedLen(len(payload)) > v.cfg.MaxPhotoSizeBytes {
		return domain.NewValidationError("photos", "Photo is too large")
	}
	return nil
}
