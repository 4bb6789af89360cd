package domain

import (
	"strings"
	"time"
)

// Principal is the stable identity string issued by the identity provider.
type Principal string

func (p Principal) String() string { return string(p) }

// Short renders a principal the way dashboards abbreviate it.
func (p Principal) Short() string {
	s := string(p)
	if len(s) <= 16 {
		return s
	}
	return s[:8] + "…" + s[len(s)-4:]
}

// ParsePrincipal trims surrounding whitespace; an empty result means anonymous.
func ParsePrincipal(s string) Principal {
	return Principal(strings.TrimSpace(s))
}

type UserProfile struct {
	DisplayName           string     `json:"display_name"`
	Bio                   string     `json:"bio"`
	ContactInfo           *string    `json:"contact_info,omitempty"`
	MobileNumber          *string    `json:"mobile_number,omitempty"`
	RegistrationTimestamp time.Time  `json:"registration_timestamp"`
	LastLoginTime         *time.Time `json:"last_login_time,omitempty"`
}

// PublicUserProfile is what other users may see of a profile.
type PublicUserProfile struct {
	DisplayName           string    `json:"display_name"`
	Bio                   string    `json:"bio"`
	RegistrationTimestamp time.Time `json:"registration_timestamp"`
}

// ProfileInput carries a saveCallerUserProfile call.
type ProfileInput struct {
	DisplayName  string
	Bio          string
	ContactInfo  *string
	MobileNumber *string
}

type MobileNumberEntry struct {
	Principal    Principal `json:"principal"`
	MobileNumber string    `json:"mobile_number"`
}

type UserActivity struct {
	Principal   Principal `json:"principal"`
	DisplayName string    `json:"display_name"`
	LastLogin   time.Time `json:"last_login"`
}
