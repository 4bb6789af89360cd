package roles

import (
	"context"
	"errors"
	"testing"

	"github.com/pashumandi/mandi-gateway/internal/config"
	"github.com/pashumandi/mandi-gateway/internal/domain"
	"github.com/pashumandi/mandi-gateway/internal/identity"
	"github.com/pashumandi/mandi-gateway/internal/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

type MockAdminChecker struct {
	mock.Mock
}

func (m *MockAdminChecker) IsCallerAdmin(ctx context.Context) (query.Result[bool], error) {
	args := m.Called(ctx)
	return args.Get(0).(query.Result[bool]), args.Error(1)
}

func signedIn(p string) identity.State {
	return identity.State{Status: identity.StatusIdle, Identity: &identity.Identity{Principal: domain.Principal(p)}}
}

var rolesCfg = config.RolesConfig{
	Management: []string{"manager-1"},
	Owner:      []string{" owner-1 "},
	Tracker:    []string{"tracker-1", "owner-1"},
}

func TestResolve_UnsettledSessionIsUnresolved(t *testing.T) {
	checker := new(MockAdminChecker)
	r := NewResolver(checker, rolesCfg, zap.NewNop())

	for _, st := range []identity.Status{identity.StatusInitializing, identity.StatusLoggingIn} {
		flags := r.Resolve(context.Background(), identity.State{Status: st, Identity: &identity.Identity{Principal: "owner-1"}})
		assert.Equal(t, Flags{}, flags)
	}
	checker.AssertNotCalled(t, "IsCallerAdmin", mock.Anything)
}

func TestResolve_AnonymousHasNoRoles(t *testing.T) {
	checker := new(MockAdminChecker)
	r := NewResolver(checker, rolesCfg, zap.NewNop())

	assert.Equal(t, Flags{Resolved: true}, r.Resolve(context.Background(), identity.Anonymous))
	checker.AssertNotCalled(t, "IsCallerAdmin", mock.Anything)
}

func TestResolve_AdminLoadingHidesEveryRole(t *testing.T) {
	checker := new(MockAdminChecker)
	checker.On("IsCallerAdmin", mock.Anything).Return(query.Result[bool]{IsLoading: true}, nil)
	r := NewResolver(checker, rolesCfg, zap.NewNop())

	assert.Equal(t, Flags{}, r.Resolve(context.Background(), signedIn("owner-1")))
}

func TestResolve_AllowListsAndAdmin(t *testing.T) {
	checker := new(MockAdminChecker)
	checker.On("IsCallerAdmin", mock.Anything).Return(query.Result[bool]{Data: true}, nil).Once()
	checker.On("IsCallerAdmin", mock.Anything).Return(query.Result[bool]{Data: false}, nil)
	r := NewResolver(checker, rolesCfg, zap.NewNop())
	ctx := context.Background()

	assert.Equal(t, Flags{Resolved: true, Admin: true}, r.Resolve(ctx, signedIn("admin-1")))
	assert.Equal(t, Flags{Resolved: true, Owner: true, Tracker: true}, r.Resolve(ctx, signedIn("owner-1")))
	assert.Equal(t, Flags{Resolved: true, Management: true}, r.Resolve(ctx, signedIn("manager-1")))
	assert.Equal(t, Flags{Resolved: true}, r.Resolve(ctx, signedIn("Manager-1")))
}

func TestResolve_AdminErrorMeansNotAdmin(t *testing.T) {
	checker := new(MockAdminChecker)
	checker.On("IsCallerAdmin", mock.Anything).Return(query.Result[bool]{}, errors.New("boom"))
	r := NewResolver(checker, rolesCfg, zap.NewNop())

	assert.Equal(t, Flags{Resolved: true, Tracker: true}, r.Resolve(context.Background(), signedIn("tracker-1")))
}

func TestResolve_ForwardsCallerToAdminCheck(t *testing.T) {
	checker := new(MockAdminChecker)
	checker.On("IsCallerAdmin", mock.MatchedBy(func(ctx context.Context) bool {
		return identity.CallerFrom(ctx) == "alice"
	})).Return(query.Result[bool]{Data: true}, nil).Once()
	r := NewResolver(checker, rolesCfg, zap.NewNop())

	assert.True(t, r.Resolve(context.Background(), signedIn("alice")).Admin)
	checker.AssertExpectations(t)
}
