// Package guard decides whether a caller may see a protected view.
package guard

import (
	"github.com/pashumandi/mandi-gateway/internal/identity"
	"github.com/pashumandi/mandi-gateway/internal/roles"
)

type Requirement string

const (
	RequireNone       Requirement = ""
	RequireSignedIn   Requirement = "signed-in"
	RequireAdmin      Requirement = "admin"
	RequireManagement Requirement = "management"
	RequireOwner      Requirement = "owner"
	RequireTracker    Requirement = "tracker"
)

func (r Requirement) String() string {
	if r == RequireNone {
		return "none"
	}
	return string(r)
}

type Decision int

const (
	Loading Decision = iota
	Denied
	Granted
)

func (d Decision) String() string {
	switch d {
	case Loading:
		return "loading"
	case Denied:
		return "denied"
	case Granted:
		return "granted"
	default:
		return "unknown"
	}
}

func (r Requirement) satisfiedBy(f roles.Flags) bool {
	switch r {
	case RequireAdmin:
		return f.Admin
	case RequireManagement:
		return f.Management
	case RequireOwner:
		return f.Owner
	case RequireTracker:
		return f.Tracker
	default:
		return false
	}
}

// Evaluate never answers Denied before the session and the roles it needs
// have settled.
func Evaluate(state identity.State, flags roles.Flags, req Requirement) Decision {
	if req == RequireNone {
		return Granted
	}
	if !state.Settled() {
		return Loading
	}
	if !state.IsAuthenticated() {
		return Denied
	}
	if req == RequireSignedIn {
		return Granted
	}
	if !flags.Resolved {
		return Loading
	}
	if req.satisfiedBy(flags) {
		return Granted
	}
	return Denied
}

// NeedsRoles reports whether evaluating req needs role flags at all.
func (r Requirement) NeedsRoles() bool {
	return r != RequireNone && r != RequireSignedIn
}
