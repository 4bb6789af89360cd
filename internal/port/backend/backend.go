package backend

import (
	"context"

	"github.com/pashumandi/mandi-gateway/internal/domain"
)

// Backend is the remote marketplace service. Every call acts on behalf of the
// caller carried by ctx (see identity.WithIdentity); the backend authorises
// privileged operations itself.
type Backend interface {
	ListingReader
	ListingWriter
	ProfileService
	MessageService
	AdminService
}

type ListingReader interface {
	GetListings(ctx context.Context) ([]domain.Listing, error)
	GetAllListings(ctx context.Context) ([]domain.Listing, error)
	GetListing(ctx context.Context, id domain.ListingID) (*domain.Listing, error)
	GetPendingListings(ctx context.Context) ([]domain.Listing, error)
	GetAllListingsAdmin(ctx context.Context) ([]domain.Listing, error)
}

type ListingWriter interface {
	CreateListing(ctx context.Context, in domain.NewListing) (domain.ListingID, error)
	UpdateListing(ctx context.Context, id domain.ListingID, in domain.ListingUpdate) error
	DeleteListing(ctx context.Context, id domain.ListingID) error
	DeleteListingAdmin(ctx context.Context, id domain.ListingID) error
	ApproveListing(ctx context.Context, id domain.ListingID) error
	RejectListing(ctx context.Context, id domain.ListingID) error
}

type ProfileService interface {
	GetCallerUserProfile(ctx context.Context) (*domain.UserProfile, error)
	GetMyProfile(ctx context.Context) (*domain.UserProfile, error)
	GetProfile(ctx context.Context, p domain.Principal) (*domain.PublicUserProfile, error)
	SaveCallerUserProfile(ctx context.Context, in domain.ProfileInput) error
	UpsertProfile(ctx context.Context, displayName, bio string, contactInfo *string) error
	SignUp(ctx context.Context, displayName, mobileNumber string) error
	GetMobileNumber(ctx context.Context) (*string, error)
}

type MessageService interface {
	GetConversation(ctx context.Context, other domain.Principal) ([]domain.Message, error)
	ListConversations(ctx context.Context) ([]domain.Principal, error)
	SendMessage(ctx context.Context, recipient domain.Principal, listingID *domain.ListingID, text string) error
}

type AdminService interface {
	IsCallerAdmin(ctx context.Context) (bool, error)
	GetAllMobileNumbers(ctx context.Context) ([]domain.MobileNumberEntry, error)
	GetAllUsersWithActivity(ctx context.Context) ([]domain.UserActivity, error)
	GetTotalListingsCount(ctx context.Context) (uint64, error)
	GetPendingListingsCount(ctx context.Context) (uint64, error)
	GetApprovedListingsCount(ctx context.Context) (uint64, error)
	GetTotalUsersCount(ctx context.Context) (uint64, error)
	GetTotalLoginsCount(ctx context.Context) (uint64, error)
}

// Readiness is closed once the backend connection can serve calls.
type Readiness interface {
	Ready() <-chan struct{}
}
