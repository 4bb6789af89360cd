package marketplace

import (
	"strconv"

	"github.com/pashumandi/mandi-gateway/internal/domain"
	"github.com/pashumandi/mandi-gateway/internal/query"
)

// Reads that depend on who asks carry the caller in their key; the cache is
// shared between users. Privileged reports are caller-scoped too so one
// admin's cached rows are never served to anyone else.

func ListingsKey() query.Key { return query.NewKey("listings") }

// ListingKey covers every caller's cached view of one listing.
func ListingKey(id domain.ListingID) query.Key {
	return query.NewKey("listing", strconv.FormatUint(uint64(id), 10))
}

func ListingViewKey(id domain.ListingID, p domain.Principal) query.Key {
	if p == "" {
		return ListingKey(id)
	}
	return append(ListingKey(id), p.String())
}

func MyListingsKey(p domain.Principal) query.Key { return scoped("myListings", p) }

func PendingListingsKey(p domain.Principal) query.Key { return scoped("pendingListings", p) }

func AllListingsAdminKey(p domain.Principal) query.Key { return scoped("allListingsAdmin", p) }

func CurrentUserProfileKey(p domain.Principal) query.Key { return scoped("currentUserProfile", p) }

func MyProfileKey(p domain.Principal) query.Key { return scoped("myProfile", p) }

func PublicProfileKey(p domain.Principal) query.Key { return scoped("publicProfile", p) }

func MobileNumberKey(p domain.Principal) query.Key { return scoped("mobileNumber", p) }

func ConversationKey(me, other domain.Principal) query.Key {
	return query.NewKey("conversation", me.String(), other.String())
}

func ConversationsKey(p domain.Principal) query.Key { return scoped("conversations", p) }

func IsAdminKey(p domain.Principal) query.Key { return scoped("isAdmin", p) }

func AllMobileNumbersKey(p domain.Principal) query.Key { return scoped("allMobileNumbers", p) }

func AllUsersWithActivityKey(p domain.Principal) query.Key {
	return scoped("allUsersWithActivity", p)
}

func CountKey(name string, p domain.Principal) query.Key { return scoped(name, p) }

func scoped(op string, p domain.Principal) query.Key {
	if p == "" {
		return query.NewKey(op)
	}
	return query.NewKey(op, p.String())
}

// Operation-wide prefixes, used when a write affects every caller's view.
var (
	allMyListings         = query.NewKey("myListings")
	allPendingListings    = query.NewKey("pendingListings")
	allListingsAdmin      = query.NewKey("allListingsAdmin")
	allMobileNumbers      = query.NewKey("allMobileNumbers")
	allUsersWithActivity  = query.NewKey("allUsersWithActivity")
	totalListingsCount    = query.NewKey("totalListingsCount")
	pendingListingsCount  = query.NewKey("pendingListingsCount")
	approvedListingsCount = query.NewKey("approvedListingsCount")
	totalUsersCount       = query.NewKey("totalUsersCount")
)
