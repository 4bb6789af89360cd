package marketplace

import (
	"context"
	"fmt"

	"github.com/pashumandi/mandi-gateway/internal/domain"
	"github.com/pashumandi/mandi-gateway/internal/identity"
	"github.com/pashumandi/mandi-gateway/internal/query"
	"go.uber.org/zap"
)

func (s *Service) caller(ctx context.Context, op string) (domain.Principal, error) {
	caller := identity.CallerFrom(ctx)
	if caller == "" {
		return "", fmt.Errorf("MarketplaceService.%s: %w", op, domain.ErrUnauthenticated)
	}
	return caller, nil
}

func (s *Service) exec(ctx context.Context, op string, call func(ctx context.Context) error, keys ...query.Key) error {
	if err := query.Exec(ctx, s.client, call, keys...); err != nil {
		s.logger.Debug("Write failed", zap.String("op", op), zap.Error(err))
		return fmt.Errorf("MarketplaceService.%s: %w", op, err)
	}
	return nil
}

// CreateListing submits a new listing; it starts pending moderation.
func (s *Service) CreateListing(ctx context.Context, in domain.NewListing) (domain.ListingID, error) {
	caller, err := s.caller(ctx, "CreateListing")
	if err != nil {
		return 0, err
	}
	id, err := query.Mutate(ctx, s.client, func(ctx context.Context) (domain.ListingID, error) {
		return s.backend.CreateListing(ctx, in)
	},
		ListingsKey(),
		MyListingsKey(caller),
		allListingsAdmin,
		allPendingListings,
		totalListingsCount,
		pendingListingsCount,
	)
	if err != nil {
		return 0, fmt.Errorf("MarketplaceService.CreateListing: %w", err)
	}
	s.logger.Info("Listing created", zap.Uint64("listing_id", uint64(id)), zap.String("owner", caller.Short()))
	return id, nil
}

func (s *Service) UpdateListing(ctx context.Context, id domain.ListingID, in domain.ListingUpdate) error {
	caller, err := s.caller(ctx, "UpdateListing")
	if err != nil {
		return err
	}
	return s.exec(ctx, "UpdateListing", func(ctx context.Context) error {
		return s.backend.UpdateListing(ctx, id, in)
	},
		ListingsKey(),
		ListingKey(id),
		MyListingsKey(caller),
		allListingsAdmin,
	)
}

func (s *Service) DeleteListing(ctx context.Context, id domain.ListingID) error {
	caller, err := s.caller(ctx, "DeleteListing")
	if err != nil {
		return err
	}
	return s.exec(ctx, "DeleteListing", func(ctx context.Context) error {
		return s.backend.DeleteListing(ctx, id)
	},
		ListingsKey(),
		ListingKey(id),
		MyListingsKey(caller),
		allListingsAdmin,
		totalListingsCount,
	)
}

// Moderator writes change listings owned by others, so every caller's
// myListings view is dropped.

func (s *Service) DeleteListingAdmin(ctx context.Context, id domain.ListingID) error {
	if _, err := s.caller(ctx, "DeleteListingAdmin"); err != nil {
		return err
	}
	return s.exec(ctx, "DeleteListingAdmin", func(ctx context.Context) error {
		return s.backend.DeleteListingAdmin(ctx, id)
	},
		allListingsAdmin,
		allPendingListings,
		ListingsKey(),
		ListingKey(id),
		allMyListings,
		totalListingsCount,
		pendingListingsCount,
		approvedListingsCount,
	)
}

func (s *Service) ApproveListing(ctx context.Context, id domain.ListingID) error {
	if _, err := s.caller(ctx, "ApproveListing"); err != nil {
		return err
	}
	return s.exec(ctx, "ApproveListing", func(ctx context.Context) error {
		return s.backend.ApproveListing(ctx, id)
	}, moderationKeys(id)...)
}

func (s *Service) RejectListing(ctx context.Context, id domain.ListingID) error {
	if _, err := s.caller(ctx, "RejectListing"); err != nil {
		return err
	}
	return s.exec(ctx, "RejectListing", func(ctx context.Context) error {
		return s.backend.RejectListing(ctx, id)
	}, moderationKeys(id)...)
}

func moderationKeys(id domain.ListingID) []query.Key {
	return []query.Key{
		ListingsKey(),
		ListingKey(id),
		allMyListings,
		allListingsAdmin,
		allPendingListings,
		approvedListingsCount,
		pendingListingsCount,
	}
}

func (s *Service) SaveCallerUserProfile(ctx context.Context, in domain.ProfileInput) error {
	caller, err := s.caller(ctx, "SaveCallerUserProfile")
	if err != nil {
		return err
	}
	return s.exec(ctx, "SaveCallerUserProfile", func(ctx context.Context) error {
		return s.backend.SaveCallerUserProfile(ctx, in)
	},
		CurrentUserProfileKey(caller),
		MyProfileKey(caller),
		MobileNumberKey(caller),
		PublicProfileKey(caller),
		allMobileNumbers,
	)
}

func (s *Service) UpsertProfile(ctx context.Context, displayName, bio string, contactInfo *string) error {
	caller, err := s.caller(ctx, "UpsertProfile")
	if err != nil {
		return err
	}
	return s.exec(ctx, "UpsertProfile", func(ctx context.Context) error {
		return s.backend.UpsertProfile(ctx, displayName, bio, contactInfo)
	},
		CurrentUserProfileKey(caller),
		MyProfileKey(caller),
		PublicProfileKey(caller),
	)
}

func (s *Service) SignUp(ctx context.Context, displayName, mobileNumber string) error {
	caller, err := s.caller(ctx, "SignUp")
	if err != nil {
		return err
	}
	return s.exec(ctx, "SignUp", func(ctx context.Context) error {
		return s.backend.SignUp(ctx, displayName, mobileNumber)
	},
		CurrentUserProfileKey(caller),
		MyProfileKey(caller),
		MobileNumberKey(caller),
		PublicProfileKey(caller),
		totalUsersCount,
		allMobileNumbers,
		allUsersWithActivity,
	)
}

// SendMessage refreshes both participants' views of the thread and inbox.
func (s *Service) SendMessage(ctx context.Context, recipient domain.Principal, listingID *domain.ListingID, text string) error {
	caller, err := s.caller(ctx, "SendMessage")
	if err != nil {
		return err
	}
	return s.exec(ctx, "SendMessage", func(ctx context.Context) error {
		return s.backend.SendMessage(ctx, recipient, listingID, text)
	},
		ConversationKey(caller, recipient),
		ConversationKey(recipient, caller),
		ConversationsKey(caller),
		ConversationsKey(recipient),
	)
}
