package identity

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pashumandi/mandi-gateway/internal/adapter/cache/memory"
	"github.com/pashumandi/mandi-gateway/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims jwt.Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func principalToken(t *testing.T, principal string) string {
	return signToken(t, Claims{
		Principal: principal,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, Anonymous, FromContext(ctx))
	assert.Empty(t, CallerFrom(ctx))

	ctx = WithIdentity(ctx, Identity{Principal: "alice", Token: "tok"})
	assert.True(t, FromContext(ctx).IsAuthenticated())
	assert.Equal(t, domain.Principal("alice"), CallerFrom(ctx))
	assert.Equal(t, "tok", TokenFrom(ctx))

	loggingIn := WithState(context.Background(), State{Status: StatusLoggingIn, Identity: &Identity{Principal: "bob"}})
	assert.False(t, FromContext(loggingIn).IsAuthenticated())
}

func TestTokenProvider_Verify(t *testing.T) {
	p := NewTokenProvider(testSecret, memory.NewCacheRepository(), time.Hour, zap.NewNop())

	id, err := p.Verify(principalToken(t, "  aaaaa-bbbbb-ccccc  "))
	require.NoError(t, err)
	assert.Equal(t, domain.Principal("aaaaa-bbbbb-ccccc"), id.Principal)

	sub := signToken(t, jwt.RegisteredClaims{Subject: "from-subject"})
	id, err = p.Verify(sub)
	require.NoError(t, err)
	assert.Equal(t, domain.Principal("from-subject"), id.Principal)

	expired := signToken(t, Claims{Principal: "x", RegisteredClaims: jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}})
	_, err = p.Verify(expired)
	assert.ErrorIs(t, err, ErrInvalidCredential)

	_, err = p.Verify(signToken(t, jwt.RegisteredClaims{}))
	assert.ErrorIs(t, err, ErrInvalidCredential)

	_, err = p.Verify("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

func TestTokenProvider_AuthenticateTwice(t *testing.T) {
	ctx := context.Background()
	p := NewTokenProvider(testSecret, memory.NewCacheRepository(), time.Hour, zap.NewNop())
	tok := principalToken(t, "alice")

	_, err := p.Authenticate(ctx, "s1", tok)
	require.NoError(t, err)
	_, err = p.Authenticate(ctx, "s1", tok)
	assert.ErrorIs(t, err, ErrAlreadyAuthenticated)

	restored, err := p.Restore(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, restored)
	assert.Equal(t, domain.Principal("alice"), restored.Principal)

	require.NoError(t, p.Revoke(ctx, "s1"))
	restored, err = p.Restore(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, restored)
}

type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Restore(ctx context.Context, sessionID string) (*Identity, error) {
	args := m.Called(ctx, sessionID)
	id, _ := args.Get(0).(*Identity)
	return id, args.Error(1)
}

func (m *MockProvider) Authenticate(ctx context.Context, sessionID, credential string) (*Identity, error) {
	args := m.Called(ctx, sessionID, credential)
	id, _ := args.Get(0).(*Identity)
	return id, args.Error(1)
}

func (m *MockProvider) Revoke(ctx context.Context, sessionID string) error {
	return m.Called(ctx, sessionID).Error(0)
}

func (m *MockProvider) Verify(token string) (*Identity, error) {
	args := m.Called(token)
	id, _ := args.Get(0).(*Identity)
	return id, args.Error(1)
}

func newTestManager(p Provider) (*Manager, *[]time.Duration) {
	return newTestManagerWithStore(p, memory.NewCacheRepository())
}

func newTestManagerWithStore(p Provider, store *memory.CacheRepository) (*Manager, *[]time.Duration) {
	m := NewManager(p, store, time.Hour, 300*time.Millisecond, zap.NewNop())
	var slept []time.Duration
	m.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return m, &slept
}

var anyID = mock.AnythingOfType("string")

func TestManager_BeginRestoresIdentity(t *testing.T) {
	ctx := context.Background()
	p := new(MockProvider)
	p.On("Restore", mock.Anything, anyID).Return(&Identity{Principal: "alice", Token: "tok"}, nil).Once()
	p.On("Verify", "tok").Return(&Identity{Principal: "alice", Token: "tok"}, nil)
	m, _ := newTestManager(p)

	first, _, err := m.Begin(ctx, "")
	require.NoError(t, err)

	p.On("Restore", mock.Anything, first).Return(&Identity{Principal: "alice", Token: "tok"}, nil).Once()
	id, state, err := m.Begin(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, first, id)
	assert.True(t, state.IsAuthenticated())

	resolved, err := m.Resolve(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, state, resolved)
}

func TestManager_BeginIgnoresUnissuedID(t *testing.T) {
	p := new(MockProvider)
	p.On("Restore", mock.Anything, anyID).Return(nil, nil).Once()
	m, _ := newTestManager(p)

	id, state, err := m.Begin(context.Background(), "chosen-by-client")
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.NotEqual(t, "chosen-by-client", id)
	assert.Equal(t, Anonymous, state)
	p.AssertNotCalled(t, "Restore", mock.Anything, "chosen-by-client")
}

func TestManager_LoginMintsFreshIDAndRetiresPrevious(t *testing.T) {
	ctx := context.Background()
	p := new(MockProvider)
	p.On("Restore", mock.Anything, anyID).Return(nil, nil).Once()
	p.On("Authenticate", mock.Anything, anyID, "cred").Return(&Identity{Principal: "alice", Token: "tok"}, nil).Once()
	p.On("Revoke", mock.Anything, anyID).Return(nil)
	p.On("Verify", "tok").Return(&Identity{Principal: "alice", Token: "tok"}, nil)
	m, _ := newTestManager(p)

	prev, _, err := m.Begin(ctx, "")
	require.NoError(t, err)

	id, state, err := m.Login(ctx, prev, "cred")
	require.NoError(t, err)
	assert.NotEqual(t, prev, id)
	assert.True(t, state.IsAuthenticated())

	old, err := m.Resolve(ctx, prev)
	require.NoError(t, err)
	assert.Equal(t, Anonymous, old)

	current, err := m.Resolve(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.Principal("alice"), current.Principal())
	p.AssertCalled(t, "Revoke", mock.Anything, prev)
}

func TestManager_LoginRetriesOnceAfterAlreadyAuthenticated(t *testing.T) {
	ctx := context.Background()
	p := new(MockProvider)
	p.On("Authenticate", mock.Anything, anyID, "cred").Return(nil, ErrAlreadyAuthenticated).Once()
	p.On("Revoke", mock.Anything, anyID).Return(nil).Once()
	p.On("Authenticate", mock.Anything, anyID, "cred").Return(&Identity{Principal: "alice"}, nil).Once()
	m, slept := newTestManager(p)

	_, state, err := m.Login(ctx, "", "cred")
	require.NoError(t, err)
	assert.Equal(t, StatusIdle, state.Status)
	assert.Equal(t, domain.Principal("alice"), state.Principal())
	assert.Equal(t, []time.Duration{300 * time.Millisecond}, *slept)
	p.AssertExpectations(t)
}

func TestManager_LoginSecondFailureSurfacesAndSettles(t *testing.T) {
	ctx := context.Background()
	p := new(MockProvider)
	p.On("Restore", mock.Anything, anyID).Return(nil, nil).Once()
	p.On("Authenticate", mock.Anything, anyID, "cred").Return(nil, ErrAlreadyAuthenticated).Once()
	p.On("Revoke", mock.Anything, anyID).Return(nil)
	p.On("Authenticate", mock.Anything, anyID, "cred").Return(nil, ErrInvalidCredential).Once()
	m, _ := newTestManager(p)

	prev, _, err := m.Begin(ctx, "")
	require.NoError(t, err)

	_, _, err = m.Login(ctx, prev, "cred")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidCredential)
	assert.NotErrorIs(t, err, ErrAlreadyAuthenticated)

	state, err := m.Resolve(ctx, prev)
	require.NoError(t, err)
	assert.Equal(t, Anonymous, state)
	p.AssertNumberOfCalls(t, "Authenticate", 2)
}

func TestManager_ResolveSignsOutExpiredToken(t *testing.T) {
	ctx := context.Background()
	store := memory.NewCacheRepository()
	p := NewTokenProvider(testSecret, store, time.Hour, zap.NewNop())
	m, _ := newTestManagerWithStore(p, store)

	short := signToken(t, Claims{Principal: "alice", RegisteredClaims: jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Second)),
	}})
	id, state, err := m.Login(ctx, "", short)
	require.NoError(t, err)
	require.True(t, state.IsAuthenticated())

	// jwt expiry has one-second resolution.
	time.Sleep(2100 * time.Millisecond)

	resolved, err := m.Resolve(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, Anonymous, resolved)

	restored, err := p.Restore(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, restored)
}

func TestManager_ClearAndUnknown(t *testing.T) {
	ctx := context.Background()
	p := new(MockProvider)
	p.On("Revoke", mock.Anything, "s1").Return(nil).Once()
	m, _ := newTestManager(p)

	require.NoError(t, m.Clear(ctx, "s1"))
	state, err := m.Resolve(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, Anonymous, state)

	state, err = m.Resolve(ctx, "never-seen")
	require.NoError(t, err)
	assert.Equal(t, Anonymous, state)
}
