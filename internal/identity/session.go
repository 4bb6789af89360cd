package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pashumandi/mandi-gateway/internal/port/cache"
	"go.uber.org/zap"
)

// Manager keeps the per-session identity state machine in the cache store so
// every gateway instance sees the same status for a session.
type Manager struct {
	provider   Provider
	store      cache.CacheRepository
	ttl        time.Duration
	retryDelay time.Duration
	logger     *zap.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

func NewManager(provider Provider, store cache.CacheRepository, ttl, retryDelay time.Duration, logger *zap.Logger) *Manager {
	return &Manager{
		provider:   provider,
		store:      store,
		ttl:        ttl,
		retryDelay: retryDelay,
		logger:     logger.Named("SessionManager"),
		sleep:      sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func sessionKey(id string) string { return "session:" + id }

func (m *Manager) save(ctx context.Context, sessionID string, s State) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("Manager.save: encode: %w", err)
	}
	if err := m.store.Set(ctx, sessionKey(sessionID), raw, m.ttl); err != nil {
		return fmt.Errorf("Manager.save: %w", err)
	}
	return nil
}

// known reports whether sessionID names a session this gateway issued.
func (m *Manager) known(ctx context.Context, sessionID string) (bool, error) {
	if sessionID == "" {
		return false, nil
	}
	if _, err := m.store.Get(ctx, sessionKey(sessionID)); err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("Manager.known: %w", err)
	}
	return true, nil
}

// Begin opens a session, or reopens one this gateway issued earlier: it is
// initializing until the provider has been asked for a surviving identity,
// then idle. An ID with no stored state is never adopted.
func (m *Manager) Begin(ctx context.Context, sessionID string) (string, State, error) {
	ok, err := m.known(ctx, sessionID)
	if err != nil {
		return "", State{}, err
	}
	if !ok {
		sessionID = uuid.NewString()
	}
	if err := m.save(ctx, sessionID, State{Status: StatusInitializing}); err != nil {
		return "", State{}, err
	}

	id, err := m.provider.Restore(ctx, sessionID)
	if err != nil {
		m.logger.Warn("Restoring identity failed, continuing anonymous", zap.String("session_id", sessionID), zap.Error(err))
		id = nil
	}
	state := State{Status: StatusIdle, Identity: id}
	if err := m.save(ctx, sessionID, state); err != nil {
		return "", State{}, err
	}
	return sessionID, state, nil
}

// Login authenticates under a freshly minted session ID and retires prevID,
// so an ID known before login never carries the new identity. A provider
// complaint that the session is already authenticated is answered by
// clearing it, waiting retryDelay and trying exactly once more; that first
// complaint is never returned.
func (m *Manager) Login(ctx context.Context, prevID, credential string) (string, State, error) {
	hadPrev, err := m.known(ctx, prevID)
	if err != nil {
		return "", State{}, err
	}
	if hadPrev {
		if err := m.save(ctx, prevID, State{Status: StatusLoggingIn}); err != nil {
			return "", State{}, err
		}
	}
	sessionID := uuid.NewString()
	if err := m.save(ctx, sessionID, State{Status: StatusLoggingIn}); err != nil {
		return "", State{}, err
	}

	id, err := m.provider.Authenticate(ctx, sessionID, credential)
	if errors.Is(err, ErrAlreadyAuthenticated) {
		m.logger.Info("Session already authenticated, clearing and retrying login", zap.String("session_id", sessionID))
		if rerr := m.provider.Revoke(ctx, sessionID); rerr != nil {
			m.logger.Warn("Revoking stale identity failed", zap.String("session_id", sessionID), zap.Error(rerr))
		}
		if serr := m.sleep(ctx, m.retryDelay); serr != nil {
			m.abandon(sessionID, prevID, hadPrev)
			return "", State{}, serr
		}
		id, err = m.provider.Authenticate(ctx, sessionID, credential)
	}
	if err != nil {
		m.abandon(sessionID, prevID, hadPrev)
		return "", State{}, fmt.Errorf("Manager.Login: %w", err)
	}

	state := State{Status: StatusIdle, Identity: id}
	if err := m.save(ctx, sessionID, state); err != nil {
		return "", State{}, err
	}
	if hadPrev {
		m.retire(prevID)
	}
	m.logger.Info("Login succeeded", zap.String("session_id", sessionID), zap.String("principal", id.Principal.Short()))
	return sessionID, state, nil
}

// The helpers below must not depend on the request context, which may already
// be cancelled; a session left in logging-in would block guarded routes.

func (m *Manager) abandon(freshID, prevID string, hadPrev bool) {
	m.retire(freshID)
	if hadPrev {
		m.settleAnonymous(prevID)
	}
}

func (m *Manager) settleAnonymous(sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.save(ctx, sessionID, Anonymous); err != nil {
		m.logger.Error("Failed to settle session", zap.String("session_id", sessionID), zap.Error(err))
	}
}

// retire forgets a session entirely; its ID resolves as anonymous afterwards.
func (m *Manager) retire(sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.provider.Revoke(ctx, sessionID); err != nil {
		m.logger.Warn("Revoking retired session failed", zap.String("session_id", sessionID), zap.Error(err))
	}
	if err := m.store.Delete(ctx, sessionKey(sessionID)); err != nil {
		m.logger.Error("Failed to drop session", zap.String("session_id", sessionID), zap.Error(err))
	}
}

func (m *Manager) Clear(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := m.provider.Revoke(ctx, sessionID); err != nil {
		return fmt.Errorf("Manager.Clear: %w", err)
	}
	return m.save(ctx, sessionID, Anonymous)
}

// Resolve returns the stored state. Unknown or expired sessions are
// anonymous, and so is a session whose provider token no longer verifies.
func (m *Manager) Resolve(ctx context.Context, sessionID string) (State, error) {
	if sessionID == "" {
		return Anonymous, nil
	}
	raw, err := m.store.Get(ctx, sessionKey(sessionID))
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return Anonymous, nil
		}
		return State{}, fmt.Errorf("Manager.Resolve: %w", err)
	}
	var s State
	if err := json.Unmarshal(raw, &s); err != nil {
		return State{}, fmt.Errorf("Manager.Resolve: decode: %w", err)
	}
	if s.IsAuthenticated() {
		if _, err := m.provider.Verify(s.Identity.Token); err != nil {
			m.logger.Info("Session token no longer valid, signing out", zap.String("session_id", sessionID), zap.Error(err))
			if rerr := m.provider.Revoke(ctx, sessionID); rerr != nil {
				m.logger.Warn("Revoking expired identity failed", zap.String("session_id", sessionID), zap.Error(rerr))
			}
			if serr := m.save(ctx, sessionID, Anonymous); serr != nil {
				return State{}, serr
			}
			return Anonymous, nil
		}
	}
	return s, nil
}
