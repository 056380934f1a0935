package tenantctx

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/clearvault/clearvault/internal/apiserver/database"
	"github.com/clearvault/clearvault/internal/quota"
	"go.uber.org/zap"
)

// ErrNoAccess is returned when the user holds no active membership in the
// selected tenant.
var ErrNoAccess = errors.New("user has no access to tenant")

// TenantInvalidError carries every violation found while validating a
// tenant, so callers can surface them all at once.
type TenantInvalidError struct {
	Violations []string
}

func (e *TenantInvalidError) Error() string {
	return fmt.Sprintf("tenant invalid: %s", strings.Join(e.Violations, "; "))
}

// TenantContext is the fully validated active-tenant view for one session
type TenantContext struct {
	Tenant *database.Tenant       `json:"tenant"`
	Role   database.TenantUserRole `json:"role"`
	Plan   *database.Plan          `json:"plan"`
	Usage  *quota.Usage            `json:"usage"`
}

// Resolver resolves and validates the active tenant for a session
type Resolver struct {
	db         database.Database
	selections SelectionStore
	usage      *quota.Tracker
	logger     *zap.Logger
	now        func() time.Time
}

// NewResolver creates a tenant context resolver
func NewResolver(db database.Database, selections SelectionStore, usage *quota.Tracker, logger *zap.Logger) *Resolver {
	return &Resolver{
		db:         db,
		selections: selections,
		usage:      usage,
		logger:     logger.Named("tenantctx.resolver"),
		now:        time.Now,
	}
}

// ResolveTenantID reads the stored tenant selection for a session.
// Returns ErrNoSelection when the session has none.
func (r *Resolver) ResolveTenantID(ctx context.Context, sessionID string) (uint, error) {
	return r.selections.Get(ctx, sessionID)
}

// SelectTenant stores the session's active tenant after verifying the user
// actually has access to it.
func (r *Resolver) SelectTenant(ctx context.Context, sessionID string, userID, tenantID uint) error {
	ok, err := r.HasAccessToTenant(ctx, userID, tenantID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoAccess
	}
	return r.selections.Set(ctx, sessionID, tenantID)
}

// HasAccessToTenant reports whether the user holds an ACTIVE membership in
// the tenant. PENDING or INACTIVE memberships do not count as access.
func (r *Resolver) HasAccessToTenant(ctx context.Context, userID, tenantID uint) (bool, error) {
	tu, err := r.db.GetTenantUser(ctx, tenantID, userID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return tu.Status == database.TenantUserActive, nil
}

// ValidateTenant returns every violation preventing the tenant from being
// used, as human-readable strings. An empty slice means the tenant is valid.
func (r *Resolver) ValidateTenant(ctx context.Context, tenantID uint) ([]string, error) {
	tenant, err := r.db.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	var violations []string
	switch tenant.Status {
	case database.TenantSuspended:
		violations = append(violations, "Tenant is suspended")
	case database.TenantExpired:
		violations = append(violations, "Tenant is expired")
	}
	if tenant.EndDate != nil && tenant.EndDate.Before(r.now()) {
		violations = append(violations, "Plan expired")
	}
	return violations, nil
}

// GetTenantContext composes the validated tenant, the caller's role, the
// plan and live usage. Any validation failure clears the stored selection
// so subsequent calls do not repeat a stale decision.
func (r *Resolver) GetTenantContext(ctx context.Context, sessionID string, userID uint) (*TenantContext, error) {
	tenantID, err := r.ResolveTenantID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	violations, err := r.ValidateTenant(ctx, tenantID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			r.clearSelection(ctx, sessionID)
		}
		return nil, err
	}
	if len(violations) > 0 {
		r.clearSelection(ctx, sessionID)
		return nil, &TenantInvalidError{Violations: violations}
	}

	tu, err := r.db.GetTenantUser(ctx, tenantID, userID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			r.clearSelection(ctx, sessionID)
			return nil, ErrNoAccess
		}
		return nil, err
	}
	if tu.Status != database.TenantUserActive {
		r.clearSelection(ctx, sessionID)
		return nil, ErrNoAccess
	}

	tenant, err := r.db.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	plan, err := r.db.GetPlan(ctx, tenant.PlanID)
	if err != nil {
		return nil, err
	}
	usage, err := r.usage.GetUsage(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	return &TenantContext{
		Tenant: tenant,
		Role:   tu.Role,
		Plan:   plan,
		Usage:  usage,
	}, nil
}

// clearSelection is best-effort; a store failure must not mask the primary
// validation outcome.
func (r *Resolver) clearSelection(ctx context.Context, sessionID string) {
	if err := r.selections.Clear(ctx, sessionID); err != nil {
		r.logger.Warn("failed to clear stale tenant selection",
			zap.String("session_id", sessionID),
			zap.Error(err))
	}
}
