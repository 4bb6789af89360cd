// Package marketplace exposes one method per backend operation, each served
// through the query cache. Writes list exactly which reads they invalidate.
package marketplace

import (
	"context"
	"fmt"
	"time"

	"github.com/pashumandi/mandi-gateway/internal/config"
	"github.com/pashumandi/mandi-gateway/internal/domain"
	"github.com/pashumandi/mandi-gateway/internal/identity"
	"github.com/pashumandi/mandi-gateway/internal/port/backend"
	"github.com/pashumandi/mandi-gateway/internal/query"
	"go.uber.org/zap"
)

type Service struct {
	backend backend.Backend
	client  *query.Client
	policy  config.CacheConfig
	logger  *zap.Logger
}

func NewService(b backend.Backend, client *query.Client, policy config.CacheConfig, logger *zap.Logger) *Service {
	return &Service{
		backend: b,
		client:  client,
		policy:  policy,
		logger:  logger.Named("MarketplaceService"),
	}
}

// Ready reports whether the backend connection can take calls.
func (s *Service) Ready() bool { return s.client.Ready() }

func nonNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}

func listRead[T any](key query.Key, enabled bool, ttl time.Duration, call func(ctx context.Context) ([]T, error)) query.Read[[]T] {
	return query.Read[[]T]{
		Key:     key,
		Enabled: enabled,
		Default: []T{},
		TTL:     ttl,
		Call: func(ctx context.Context) ([]T, error) {
			out, err := call(ctx)
			return nonNil(out), err
		},
	}
}

func countRead(key query.Key, call func(ctx context.Context) (uint64, error)) query.Read[uint64] {
	return query.Read[uint64]{Key: key, Enabled: true, Call: call}
}

// Listings returns the public (approved, active) listings in backend order.
func (s *Service) Listings(ctx context.Context) (query.Result[[]domain.Listing], error) {
	return query.Fetch(ctx, s.client, listRead(ListingsKey(), true, 0, s.backend.GetListings))
}

// Listing answers with a listing that is publicly visible, owned by the
// caller, or seen by an admin. Anything else reads as absent, so pending and
// rejected IDs cannot be enumerated.
func (s *Service) Listing(ctx context.Context, id domain.ListingID) (query.Result[*domain.Listing], error) {
	caller := identity.CallerFrom(ctx)
	res, err := query.Fetch(ctx, s.client, query.Read[*domain.Listing]{
		Key:     ListingViewKey(id, caller),
		Enabled: id != 0,
		Call: func(ctx context.Context) (*domain.Listing, error) {
			return s.backend.GetListing(ctx, id)
		},
	})
	if err != nil || res.Data == nil || res.Data.PubliclyVisible() {
		return res, err
	}
	if caller != "" && res.Data.Owner == caller {
		return res, nil
	}
	if caller != "" {
		admin, err := s.IsCallerAdmin(ctx)
		if err != nil {
			return query.Result[*domain.Listing]{}, fmt.Errorf("MarketplaceService.Listing: %w", err)
		}
		if admin.IsLoading {
			return query.Result[*domain.Listing]{IsLoading: true}, nil
		}
		if admin.Data {
			return res, nil
		}
	}
	return query.Result[*domain.Listing]{}, nil
}

// MyListings is every listing the caller owns, whatever its status.
func (s *Service) MyListings(ctx context.Context) (query.Result[[]domain.Listing], error) {
	caller := identity.CallerFrom(ctx)
	return query.Fetch(ctx, s.client, listRead(MyListingsKey(caller), caller != "", 0,
		func(ctx context.Context) ([]domain.Listing, error) {
			all, err := s.backend.GetAllListings(ctx)
			if err != nil {
				return nil, err
			}
			mine := make([]domain.Listing, 0)
			for _, l := range all {
				if l.Owner == caller {
					mine = append(mine, l)
				}
			}
			return mine, nil
		}))
}

func (s *Service) PendingListings(ctx context.Context) (query.Result[[]domain.Listing], error) {
	caller := identity.CallerFrom(ctx)
	return query.Fetch(ctx, s.client, listRead(PendingListingsKey(caller), caller != "", 0, s.backend.GetPendingListings))
}

func (s *Service) AllListingsAdmin(ctx context.Context) (query.Result[[]domain.Listing], error) {
	caller := identity.CallerFrom(ctx)
	return query.Fetch(ctx, s.client, listRead(AllListingsAdminKey(caller), caller != "", 0, s.backend.GetAllListingsAdmin))
}

// CallerUserProfile is the only read whose errors reach the caller: the
// session needs to tell "no profile yet" apart from "could not ask".
func (s *Service) CallerUserProfile(ctx context.Context) (query.Result[*domain.UserProfile], error) {
	caller := identity.CallerFrom(ctx)
	res, err := query.Fetch(ctx, s.client, query.Read[*domain.UserProfile]{
		Key:       CurrentUserProfileKey(caller),
		Enabled:   caller != "",
		Propagate: true,
		Call:      s.backend.GetCallerUserProfile,
	})
	if err != nil {
		return res, fmt.Errorf("MarketplaceService.CallerUserProfile: %w", err)
	}
	return res, nil
}

func (s *Service) MyProfile(ctx context.Context) (query.Result[*domain.UserProfile], error) {
	caller := identity.CallerFrom(ctx)
	return query.Fetch(ctx, s.client, query.Read[*domain.UserProfile]{
		Key:     MyProfileKey(caller),
		Enabled: caller != "",
		Call:    s.backend.GetMyProfile,
	})
}

func (s *Service) PublicProfile(ctx context.Context, p domain.Principal) (query.Result[*domain.PublicUserProfile], error) {
	return query.Fetch(ctx, s.client, query.Read[*domain.PublicUserProfile]{
		Key:     PublicProfileKey(p),
		Enabled: p != "",
		Call: func(ctx context.Context) (*domain.PublicUserProfile, error) {
			return s.backend.GetProfile(ctx, p)
		},
	})
}

func (s *Service) MobileNumber(ctx context.Context) (query.Result[*string], error) {
	caller := identity.CallerFrom(ctx)
	return query.Fetch(ctx, s.client, query.Read[*string]{
		Key:     MobileNumberKey(caller),
		Enabled: caller != "",
		Call:    s.backend.GetMobileNumber,
	})
}

// Conversation is refreshed every cache.conversation interval.
func (s *Service) Conversation(ctx context.Context, other domain.Principal) (query.Result[[]domain.Message], error) {
	caller := identity.CallerFrom(ctx)
	return query.Fetch(ctx, s.client, listRead(ConversationKey(caller, other), caller != "" && other != "", s.policy.Conversation,
		func(ctx context.Context) ([]domain.Message, error) {
			return s.backend.GetConversation(ctx, other)
		}))
}

func (s *Service) Conversations(ctx context.Context) (query.Result[[]domain.Principal], error) {
	caller := identity.CallerFrom(ctx)
	return query.Fetch(ctx, s.client, listRead(ConversationsKey(caller), caller != "", s.policy.Conversations, s.backend.ListConversations))
}

// IsCallerAdmin goes stale after cache.admin_stale so revoked admins lose
// access without an explicit invalidation.
func (s *Service) IsCallerAdmin(ctx context.Context) (query.Result[bool], error) {
	caller := identity.CallerFrom(ctx)
	return query.Fetch(ctx, s.client, query.Read[bool]{
		Key:     IsAdminKey(caller),
		Enabled: caller != "",
		TTL:     s.policy.AdminStale,
		Call:    s.backend.IsCallerAdmin,
	})
}

func (s *Service) AllMobileNumbers(ctx context.Context) (query.Result[[]domain.MobileNumberEntry], error) {
	caller := identity.CallerFrom(ctx)
	return query.Fetch(ctx, s.client, listRead(AllMobileNumbersKey(caller), caller != "", 0, s.backend.GetAllMobileNumbers))
}

func (s *Service) AllUsersWithActivity(ctx context.Context) (query.Result[[]domain.UserActivity], error) {
	caller := identity.CallerFrom(ctx)
	return query.Fetch(ctx, s.client, listRead(AllUsersWithActivityKey(caller), caller != "", 0, s.backend.GetAllUsersWithActivity))
}

func (s *Service) TotalListingsCount(ctx context.Context) (query.Result[uint64], error) {
	return query.Fetch(ctx, s.client, countRead(CountKey("totalListingsCount", identity.CallerFrom(ctx)), s.backend.GetTotalListingsCount))
}

func (s *Service) PendingListingsCount(ctx context.Context) (query.Result[uint64], error) {
	return query.Fetch(ctx, s.client, countRead(CountKey("pendingListingsCount", identity.CallerFrom(ctx)), s.backend.GetPendingListingsCount))
}

func (s *Service) ApprovedListingsCount(ctx context.Context) (query.Result[uint64], error) {
	return query.Fetch(ctx, s.client, countRead(CountKey("approvedListingsCount", identity.CallerFrom(ctx)), s.backend.GetApprovedListingsCount))
}

func (s *Service) TotalUsersCount(ctx context.Context) (query.Result[uint64], error) {
	return query.Fetch(ctx, s.client, countRead(CountKey("totalUsersCount", identity.CallerFrom(ctx)), s.backend.GetTotalUsersCount))
}

func (s *Service) TotalLoginsCount(ctx context.Context) (query.Result[uint64], error) {
	return query.Fetch(ctx, s.client, countRead(CountKey("totalLoginsCount", identity.CallerFrom(ctx)), s.backend.GetTotalLoginsCount))
}
