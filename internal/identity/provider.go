package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pashumandi/mandi-gateway/internal/domain"
	"github.com/pashumandi/mandi-gateway/internal/port/cache"
	"go.uber.org/zap"
)

var (
	ErrAlreadyAuthenticated = errors.New("identity: session is already authenticated")
	ErrInvalidCredential    = errors.New("identity: invalid credential")
)

// Provider is the external identity authority.
type Provider interface {
	// Restore returns the identity a session still holds, or nil.
	Restore(ctx context.Context, sessionID string) (*Identity, error)
	Authenticate(ctx context.Context, sessionID, credential string) (*Identity, error)
	Revoke(ctx context.Context, sessionID string) error
	// Verify checks a token the session already holds.
	Verify(token string) (*Identity, error)
}

// Claims of a provider-issued token. Principal falls back to the subject.
type Claims struct {
	Principal string `json:"principal"`
	jwt.RegisteredClaims
}

// TokenProvider accepts HS256 tokens signed by the identity provider and
// remembers which identity each session holds.
type TokenProvider struct {
	secret []byte
	store  cache.CacheRepository
	ttl    time.Duration
	logger *zap.Logger
}

func NewTokenProvider(secret string, store cache.CacheRepository, ttl time.Duration, logger *zap.Logger) *TokenProvider {
	return &TokenProvider{
		secret: []byte(secret),
		store:  store,
		ttl:    ttl,
		logger: logger.Named("TokenProvider"),
	}
}

func identityKey(sessionID string) string { return "identity:" + sessionID }

// Verify checks a bearer token without touching any session.
func (p *TokenProvider) Verify(tokenString string) (*Identity, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return nil, ErrInvalidCredential
	}
	if len(p.secret) == 0 {
		return nil, fmt.Errorf("%w: no signing secret configured", ErrInvalidCredential)
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return p.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: token has expired", ErrInvalidCredential)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	if !token.Valid {
		return nil, ErrInvalidCredential
	}

	principal := domain.ParsePrincipal(claims.Principal)
	if principal == "" {
		principal = domain.ParsePrincipal(claims.Subject)
	}
	if principal == "" {
		return nil, fmt.Errorf("%w: principal not found in token claims", ErrInvalidCredential)
	}
	return &Identity{Principal: principal, Token: tokenString}, nil
}

func (p *TokenProvider) Restore(ctx context.Context, sessionID string) (*Identity, error) {
	raw, err := p.store.Get(ctx, identityKey(sessionID))
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("TokenProvider.Restore: %w", err)
	}
	var id Identity
	if err := json.Unmarshal(raw, &id); err != nil {
		return nil, fmt.Errorf("TokenProvider.Restore: decode: %w", err)
	}
	// A stored token that has since expired no longer identifies anyone.
	if _, err := p.Verify(id.Token); err != nil {
		p.logger.Debug("Stored identity no longer valid", zap.String("session_id", sessionID), zap.Error(err))
		_ = p.store.Delete(ctx, identityKey(sessionID))
		return nil, nil
	}
	return &id, nil
}

func (p *TokenProvider) Authenticate(ctx context.Context, sessionID, credential string) (*Identity, error) {
	existing, err := p.store.Get(ctx, identityKey(sessionID))
	if err == nil && len(existing) > 0 {
		return nil, ErrAlreadyAuthenticated
	}
	if err != nil && !errors.Is(err, cache.ErrNotFound) {
		return nil, fmt.Errorf("TokenProvider.Authenticate: %w", err)
	}

	id, err := p.Verify(credential)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(id)
	if err != nil {
		return nil, fmt.Errorf("TokenProvider.Authenticate: encode: %w", err)
	}
	if err := p.store.Set(ctx, identityKey(sessionID), raw, p.ttl); err != nil {
		return nil, fmt.Errorf("TokenProvider.Authenticate: %w", err)
	}
	return id, nil
}

func (p *TokenProvider) Revoke(ctx context.Context, sessionID string) error {
	if err := p.store.Delete(ctx, identityKey(sessionID)); err != nil {
		return fmt.Errorf("TokenProvider.Revoke: %w", err)
	}
	return nil
}
