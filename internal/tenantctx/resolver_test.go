package tenantctx

import (
	"context"
	"testing"
	"time"

	"github.com/clearvault/clearvault/internal/apiserver/database"
	"github.com/clearvault/clearvault/internal/common/config"
	"github.com/clearvault/clearvault/internal/quota"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type resolverFixture struct {
	db       database.Database
	store    SelectionStore
	resolver *Resolver

	user   *database.User
	tenant *database.Tenant
}

func newResolverFixture(t *testing.T) *resolverFixture {
	t.Helper()
	ctx := context.Background()

	db, err := database.NewSQLite(&config.DatabaseConfig{Type: "sqlite", DBName: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	plan := &database.Plan{Name: "pro", MaxVDR: 5, MaxAdminUsers: 5, MaxStorageMB: 100}
	require.NoError(t, db.CreatePlan(ctx, plan))

	tenant := &database.Tenant{Name: "Acme", Slug: "acme", Status: database.TenantActive, PlanID: plan.ID}
	require.NoError(t, db.CreateTenant(ctx, tenant))

	user := &database.User{Username: "alice", Password: "x", Status: database.UserActive}
	require.NoError(t, db.CreateUser(ctx, user))
	require.NoError(t, db.AddUserToTenant(ctx, &database.TenantUser{
		TenantID: tenant.ID,
		UserID:   user.ID,
		Role:     database.RoleTenantAdmin,
		Status:   database.TenantUserActive,
	}))

	store := NewMemoryStore()
	tracker := quota.NewTracker(db, zap.NewNop())
	return &resolverFixture{
		db:       db,
		store:    store,
		resolver: NewResolver(db, store, tracker, zap.NewNop()),
		user:     user,
		tenant:   tenant,
	}
}

func TestResolver_SelectAndResolve(t *testing.T) {
	f := newResolverFixture(t)
	ctx := context.Background()

	_, err := f.resolver.ResolveTenantID(ctx, "s1")
	assert.ErrorIs(t, err, ErrNoSelection)

	require.NoError(t, f.resolver.SelectTenant(ctx, "s1", f.user.ID, f.tenant.ID))

	id, err := f.resolver.ResolveTenantID(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, f.tenant.ID, id)
}

func TestResolver_SelectDeniedWithoutMembership(t *testing.T) {
	f := newResolverFixture(t)
	ctx := context.Background()

	stranger := &database.User{Username: "mallory", Password: "x", Status: database.UserActive}
	require.NoError(t, f.db.CreateUser(ctx, stranger))

	err := f.resolver.SelectTenant(ctx, "s2", stranger.ID, f.tenant.ID)
	assert.ErrorIs(t, err, ErrNoAccess)
}

func TestResolver_PendingMembershipIsNotAccess(t *testing.T) {
	f := newResolverFixture(t)
	ctx := context.Background()

	invited := &database.User{Username: "bob", Password: "x", Status: database.UserActive}
	require.NoError(t, f.db.CreateUser(ctx, invited))
	require.NoError(t, f.db.AddUserToTenant(ctx, &database.TenantUser{
		TenantID: f.tenant.ID,
		UserID:   invited.ID,
		Role:     database.RoleMember,
		Status:   database.TenantUserPending,
	}))

	ok, err := f.resolver.HasAccessToTenant(ctx, invited.ID, f.tenant.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResolver_GetTenantContext(t *testing.T) {
	f := newResolverFixture(t)
	ctx := context.Background()

	require.NoError(t, f.resolver.SelectTenant(ctx, "s1", f.user.ID, f.tenant.ID))

	tc, err := f.resolver.GetTenantContext(ctx, "s1", f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, f.tenant.ID, tc.Tenant.ID)
	assert.Equal(t, database.RoleTenantAdmin, tc.Role)
	assert.Equal(t, "pro", tc.Plan.Name)
	require.NotNil(t, tc.Usage)
	assert.Equal(t, f.tenant.ID, tc.Usage.TenantID)
}

func TestResolver_SuspendedTenantClearsSelection(t *testing.T) {
	f := newResolverFixture(t)
	ctx := context.Background()

	require.NoError(t, f.resolver.SelectTenant(ctx, "s1", f.user.ID, f.tenant.ID))

	f.tenant.Status = database.TenantSuspended
	require.NoError(t, f.db.UpdateTenant(ctx, f.tenant))

	_, err := f.resolver.GetTenantContext(ctx, "s1", f.user.ID)
	var tie *TenantInvalidError
	require.ErrorAs(t, err, &tie)
	assert.Contains(t, tie.Violations, "Tenant is suspended")

	// The stale selection is self-healed: the next resolve starts clean.
	_, err = f.resolver.ResolveTenantID(ctx, "s1")
	assert.ErrorIs(t, err, ErrNoSelection)
}

func TestResolver_ExpiredPlanViolation(t *testing.T) {
	f := newResolverFixture(t)
	ctx := context.Background()

	past := time.Now().Add(-24 * time.Hour)
	f.tenant.EndDate = &past
	require.NoError(t, f.db.UpdateTenant(ctx, f.tenant))

	violations, err := f.resolver.ValidateTenant(ctx, f.tenant.ID)
	require.NoError(t, err)
	assert.Contains(t, violations, "Plan expired")
}

func TestResolver_LostMembershipClearsSelection(t *testing.T) {
	f := newResolverFixture(t)
	ctx := context.Background()

	require.NoError(t, f.resolver.SelectTenant(ctx, "s1", f.user.ID, f.tenant.ID))
	require.NoError(t, f.db.RemoveUserFromTenant(ctx, f.tenant.ID, f.user.ID))

	_, err := f.resolver.GetTenantContext(ctx, "s1", f.user.ID)
	assert.ErrorIs(t, err, ErrNoAccess)

	_, err = f.resolver.ResolveTenantID(ctx, "s1")
	assert.ErrorIs(t, err, ErrNoSelection)
}

func TestMemoryStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNoSelection)

	require.NoError(t, store.Set(ctx, "s1", 7))
	id, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, uint(7), id)

	require.NoError(t, store.Clear(ctx, "s1"))
	_, err = store.Get(ctx, "s1")
	assert.ErrorIs(t, err, ErrNoSelection)

	// Clearing an absent selection is not an error.
	assert.NoError(t, store.Clear(ctx, "never-set"))
}
