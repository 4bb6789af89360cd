package middleware

import (
	"context"

	"github.com/pashumandi/mandi-gateway/internal/roles"
)

// ContextKey keeps this package's context values apart from everyone else's.
type ContextKey string

const (
	RequestIDCtxKey = ContextKey("request_id")
	SessionIDCtxKey = ContextKey("session_id")
	FlagsCtxKey     = ContextKey("role_flags")
)

func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDCtxKey).(string)
	return id
}

// SessionIDFrom is empty for bearer-token and anonymous requests.
func SessionIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(SessionIDCtxKey).(string)
	return id
}

// FlagsFrom returns the role flags computed by a guard, if one ran.
func FlagsFrom(ctx context.Context) (roles.Flags, bool) {
	f, ok := ctx.Value(FlagsCtxKey).(roles.Flags)
	return f, ok
}
