// Package roles derives the caller's role flags. Roles are never stored; they
// are recomputed from the session and the backend's admin check.
package roles

import (
	"context"

	"github.com/pashumandi/mandi-gateway/internal/config"
	"github.com/pashumandi/mandi-gateway/internal/domain"
	"github.com/pashumandi/mandi-gateway/internal/identity"
	"github.com/pashumandi/mandi-gateway/internal/query"
	"go.uber.org/zap"
)

type Flags struct {
	// Resolved is false while any input is still loading; every role is
	// false until then.
	Resolved   bool `json:"resolved"`
	Admin      bool `json:"admin"`
	Management bool `json:"management"`
	Owner      bool `json:"owner"`
	Tracker    bool `json:"tracker"`
}

// AdminChecker is the cached isCallerAdmin read.
type AdminChecker interface {
	IsCallerAdmin(ctx context.Context) (query.Result[bool], error)
}

type Resolver struct {
	admin      AdminChecker
	management map[domain.Principal]bool
	owner      map[domain.Principal]bool
	tracker    map[domain.Principal]bool
	logger     *zap.Logger
}

func toSet(list []string) map[domain.Principal]bool {
	set := make(map[domain.Principal]bool, len(list))
	for _, p := range list {
		if pp := domain.ParsePrincipal(p); pp != "" {
			set[pp] = true
		}
	}
	return set
}

func NewResolver(admin AdminChecker, cfg config.RolesConfig, logger *zap.Logger) *Resolver {
	return &Resolver{
		admin:      admin,
		management: toSet(cfg.Management),
		owner:      toSet(cfg.Owner),
		tracker:    toSet(cfg.Tracker),
		logger:     logger.Named("RoleResolver"),
	}
}

// Resolve never fails: a failed admin check means "not admin".
func (r *Resolver) Resolve(ctx context.Context, state identity.State) Flags {
	if !state.Settled() {
		return Flags{}
	}
	if !state.IsAuthenticated() {
		return Flags{Resolved: true}
	}

	ctx = identity.WithState(ctx, state)
	res, err := r.admin.IsCallerAdmin(ctx)
	if err != nil {
		r.logger.Warn("Admin check failed, treating caller as non-admin", zap.Error(err))
		res = query.Result[bool]{IsError: true}
	}
	if res.IsLoading {
		return Flags{}
	}

	p := domain.ParsePrincipal(state.Principal().String())
	return Flags{
		Resolved:   true,
		Admin:      res.Data,
		Management: r.management[p],
		Owner:      r.owner[p],
		Tracker:    r.tracker[p],
	}
}
