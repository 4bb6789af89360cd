// Package identity tracks who is calling the gateway and whether that is
// still being established.
package identity

import (
	"context"

	"github.com/pashumandi/mandi-gateway/internal/domain"
)

type Status string

const (
	StatusInitializing Status = "initializing"
	StatusLoggingIn    Status = "logging-in"
	StatusIdle         Status = "idle"
)

// Identity is an authenticated caller. Token is forwarded to the backend.
type Identity struct {
	Principal domain.Principal `json:"principal"`
	Token     string           `json:"token"`
}

type State struct {
	Status   Status    `json:"status"`
	Identity *Identity `json:"identity,omitempty"`
}

// Anonymous is the settled state of a caller with no identity.
var Anonymous = State{Status: StatusIdle}

// Settled reports whether the identity question has an answer.
func (s State) Settled() bool { return s.Status == StatusIdle }

func (s State) IsAuthenticated() bool {
	return s.Settled() && s.Identity != nil && s.Identity.Principal != ""
}

// Principal is empty for anonymous or unsettled callers.
func (s State) Principal() domain.Principal {
	if s.Identity == nil {
		return ""
	}
	return s.Identity.Principal
}

type stateCtxKey struct{}

func WithState(ctx context.Context, s State) context.Context {
	return context.WithValue(ctx, stateCtxKey{}, s)
}

// WithIdentity marks ctx as carrying an authenticated, settled caller.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return WithState(ctx, State{Status: StatusIdle, Identity: &id})
}

// FromContext returns the caller state; requests that never passed the auth
// middleware are anonymous.
func FromContext(ctx context.Context) State {
	if s, ok := ctx.Value(stateCtxKey{}).(State); ok {
		return s
	}
	return Anonymous
}

func CallerFrom(ctx context.Context) domain.Principal {
	return FromContext(ctx).Principal()
}

func TokenFrom(ctx context.Context) string {
	s := FromContext(ctx)
	if s.Identity == nil {
		return ""
	}
	return s.Identity.Token
}
