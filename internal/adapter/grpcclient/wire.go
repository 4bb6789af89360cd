package grpcclient

import (
	"time"

	"github.com/pashumandi/mandi-gateway/internal/domain"
)

// The backend speaks camelCase records with nanosecond timestamps.

type listingDTO struct {
	ID          uint64   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Price       int64    `json:"price"`
	Category    string   `json:"category"`
	Location    string   `json:"location"`
	PhotoURLs   []string `json:"photoUrls"`
	Owner       string   `json:"owner"`
	IsActive    bool     `json:"isActive"`
	IsVip       bool     `json:"isVip"`
	Status      string   `json:"status"`
	Timestamp   int64    `json:"timestamp"`
}

func (d listingDTO) toDomain() domain.Listing {
	photos := d.PhotoURLs
	if photos == nil {
		photos = []string{}
	}
	return domain.Listing{
		ID:          domain.ListingID(d.ID),
		Title:       d.Title,
		Description: d.Description,
		Price:       d.Price,
		Category:    domain.AnimalCategory(d.Category),
		Location:    d.Location,
		PhotoURLs:   photos,
		Owner:       domain.Principal(d.Owner),
		IsActive:    d.IsActive,
		IsVip:       d.IsVip,
		Status:      domain.ListingStatus(d.Status),
		Timestamp:   fromNanos(d.Timestamp),
	}
}

func listingsToDomain(in []listingDTO) []domain.Listing {
	out := make([]domain.Listing, 0, len(in))
	for _, d := range in {
		out = append(out, d.toDomain())
	}
	return out
}

type createListingRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Price       int64    `json:"price"`
	Category    string   `json:"category"`
	Location    string   `json:"location"`
	PhotoURLs   []string `json:"photoUrls"`
	IsVip       bool     `json:"isVip"`
}

type updateListingRequest struct {
	ID          uint64   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Price       int64    `json:"price"`
	Category    string   `json:"category"`
	Location    string   `json:"location"`
	PhotoURLs   []string `json:"photoUrls"`
	IsActive    bool     `json:"isActive"`
	IsVip       bool     `json:"isVip"`
}

type idRequest struct {
	ID uint64 `json:"id"`
}

type principalRequest struct {
	User string `json:"user"`
}

type emptyRequest struct{}

type userProfileDTO struct {
	DisplayName           string  `json:"displayName"`
	Bio                   string  `json:"bio"`
	ContactInfo           *string `json:"contactInfo,omitempty"`
	MobileNumber          *string `json:"mobileNumber,omitempty"`
	RegistrationTimestamp int64   `json:"registrationTimestamp"`
	LastLoginTime         *int64  `json:"lastLoginTime,omitempty"`
}

func (d userProfileDTO) toDomain() *domain.UserProfile {
	p := &domain.UserProfile{
		DisplayName:           d.DisplayName,
		Bio:                   d.Bio,
		ContactInfo:           d.ContactInfo,
		MobileNumber:          d.MobileNumber,
		RegistrationTimestamp: fromNanos(d.RegistrationTimestamp),
	}
	if d.LastLoginTime != nil {
		t := fromNanos(*d.LastLoginTime)
		p.LastLoginTime = &t
	}
	return p
}

type publicProfileDTO struct {
	DisplayName           string `json:"displayName"`
	Bio                   string `json:"bio"`
	RegistrationTimestamp int64  `json:"registrationTimestamp"`
}

type saveProfileRequest struct {
	DisplayName  string  `json:"displayName"`
	Bio          string  `json:"bio"`
	ContactInfo  *string `json:"contactInfo"`
	MobileNumber *string `json:"mobileNumber"`
}

type upsertProfileRequest struct {
	DisplayName string  `json:"displayName"`
	Bio         string  `json:"bio"`
	ContactInfo *string `json:"contactInfo"`
}

type signUpRequest struct {
	DisplayName  string `json:"displayName"`
	MobileNumber string `json:"mobileNumber"`
}

type messageDTO struct {
	Sender    string  `json:"sender"`
	Recipient string  `json:"recipient"`
	ListingID *uint64 `json:"listingId,omitempty"`
	Text      string  `json:"text"`
	Timestamp int64   `json:"timestamp"`
}

func (d messageDTO) toDomain() domain.Message {
	m := domain.Message{
		Sender:    domain.Principal(d.Sender),
		Recipient: domain.Principal(d.Recipient),
		Text:      d.Text,
		Timestamp: fromNanos(d.Timestamp),
	}
	if d.ListingID != nil {
		id := domain.ListingID(*d.ListingID)
		m.ListingID = &id
	}
	return m
}

type sendMessageRequest struct {
	Recipient string  `json:"recipient"`
	ListingID *uint64 `json:"listingId"`
	Text      string  `json:"text"`
}

type mobileNumberDTO struct {
	Principal    string `json:"principal"`
	MobileNumber string `json:"mobileNumber"`
}

type userActivityDTO struct {
	Principal   string `json:"principal"`
	DisplayName string `json:"displayName"`
	LastLogin   int64  `json:"lastLogin"`
}

func fromNanos(ns int64) time.Time {
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns).UTC()
}
