package quota

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/clearvault/clearvault/internal/apiserver/database"
	"go.uber.org/zap"
)

// Resource names used in quota checks
const (
	ResourceVDR       = "vdr"
	ResourceAdminUser = "admin_user"
)

// expiringWindowDays is the threshold under which a tenant counts as expiring
const expiringWindowDays = 30

// QuotaExceededError reports a plan limit that a creation would exceed.
// It is an expected, recoverable outcome, not an application error.
type QuotaExceededError struct {
	Resource string `json:"resource"`
	Limit    int    `json:"limit"`
	Current  int64  `json:"current"`
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for %s: limit %d, current %d", e.Resource, e.Limit, e.Current)
}

// Usage is a tenant's live resource consumption compared against its plan.
// A limit of -1 means unlimited and suppresses percentage computation.
type Usage struct {
	TenantID         uint    `json:"tenantId"`
	VDRCount         int64   `json:"vdrCount"`
	AdminUserCount   int64   `json:"adminUserCount"`
	TotalUserCount   int64   `json:"totalUserCount"`
	StorageUsedMB    int64   `json:"storageUsedMb"`
	MaxVDR           int     `json:"maxVdr"`
	MaxAdminUsers    int     `json:"maxAdminUsers"`
	MaxStorageMB     int64   `json:"maxStorageMb"`
	VDRPercent       float64 `json:"vdrPercentage"`
	AdminUserPercent float64 `json:"adminUserPercentage"`
	StoragePercent   float64 `json:"storagePercentage"`
	DaysRemaining    *int    `json:"daysRemaining"` // nil for perpetual plans
	Expiring         bool    `json:"isExpiring"`
}

// Tracker computes tenant usage and enforces plan limits
type Tracker struct {
	db     database.Database
	logger *zap.Logger
	now    func() time.Time
}

// NewTracker creates a quota tracker over the policy store
func NewTracker(db database.Database, logger *zap.Logger) *Tracker {
	return &Tracker{
		db:     db,
		logger: logger.Named("quota.tracker"),
		now:    time.Now,
	}
}

// GetUsage returns live counts against the tenant's plan limits
func (t *Tracker) GetUsage(ctx context.Context, tenantID uint) (*Usage, error) {
	tenant, err := t.db.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	plan, err := t.db.GetPlan(ctx, tenant.PlanID)
	if err != nil {
		return nil, err
	}

	vdrCount, err := t.db.CountDataRooms(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	adminCount, err := t.db.CountTenantAdmins(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	userCount, err := t.db.CountActiveTenantUsers(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	storageBytes, err := t.db.SumDocumentSizeBytes(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	u := &Usage{
		TenantID:       tenantID,
		VDRCount:       vdrCount,
		AdminUserCount: adminCount,
		TotalUserCount: userCount,
		StorageUsedMB:  storageBytes / (1024 * 1024),
		MaxVDR:         plan.MaxVDR,
		MaxAdminUsers:  plan.MaxAdminUsers,
		MaxStorageMB:   plan.MaxStorageMB,
	}
	u.VDRPercent = percentage(vdrCount, int64(plan.MaxVDR))
	u.AdminUserPercent = percentage(adminCount, int64(plan.MaxAdminUsers))
	u.StoragePercent = percentage(u.StorageUsedMB, plan.MaxStorageMB)

	if tenant.EndDate != nil {
		days := int(math.Ceil(tenant.EndDate.Sub(t.now()).Hours() / 24))
		u.DaysRemaining = &days
		u.Expiring = days <= expiringWindowDays
	}
	return u, nil
}

// percentage guards the unlimited (-1) and zero limits against division
func percentage(current, limit int64) float64 {
	if limit <= 0 {
		return 0
	}
	return float64(current) / float64(limit) * 100
}

// AssertWithinLimit fails with QuotaExceededError if creating one more of the
// named resource would exceed the tenant's plan limit. The check and the
// subsequent creation are not atomic; prefer CreateDataRoom / AddTenantAdmin,
// which reserve and commit in one transaction.
func (t *Tracker) AssertWithinLimit(ctx context.Context, tenantID uint, resource string) error {
	tenant, err := t.db.GetTenant(ctx, tenantID)
	if err != nil {
		return err
	}
	plan, err := t.db.GetPlan(ctx, tenant.PlanID)
	if err != nil {
		return err
	}

	var limit int
	var current int64
	switch resource {
	case ResourceVDR:
		limit = plan.MaxVDR
		current, err = t.db.CountDataRooms(ctx, tenantID)
	case ResourceAdminUser:
		limit = plan.MaxAdminUsers
		current, err = t.db.CountTenantAdmins(ctx, tenantID)
	default:
		return fmt.Errorf("unknown quota resource: %s", resource)
	}
	if err != nil {
		return err
	}

	if limit >= 0 && current+1 > int64(limit) {
		return &QuotaExceededError{Resource: resource, Limit: limit, Current: current}
	}
	return nil
}

// CreateDataRoom creates a data room with the quota check and the insert in
// one transactional unit, so concurrent creations cannot race past the limit.
func (t *Tracker) CreateDataRoom(ctx context.Context, room *database.DataRoom) error {
	tenant, err := t.db.GetTenant(ctx, room.TenantID)
	if err != nil {
		return err
	}
	plan, err := t.db.GetPlan(ctx, tenant.PlanID)
	if err != nil {
		return err
	}
	if err := t.db.CreateDataRoomWithinLimit(ctx, room, plan.MaxVDR); err != nil {
		if errors.Is(err, database.ErrLimitExceeded) {
			return t.exceeded(ctx, room.TenantID, ResourceVDR, plan.MaxVDR)
		}
		return err
	}
	return nil
}

// AddTenantAdmin grants TENANT_ADMIN with the admin-count check and the
// insert in one transactional unit.
func (t *Tracker) AddTenantAdmin(ctx context.Context, tu *database.TenantUser) error {
	tenant, err := t.db.GetTenant(ctx, tu.TenantID)
	if err != nil {
		return err
	}
	plan, err := t.db.GetPlan(ctx, tenant.PlanID)
	if err != nil {
		return err
	}
	if err := t.db.AddTenantAdminWithinLimit(ctx, tu, plan.MaxAdminUsers); err != nil {
		if errors.Is(err, database.ErrLimitExceeded) {
			return t.exceeded(ctx, tu.TenantID, ResourceAdminUser, plan.MaxAdminUsers)
		}
		return err
	}
	return nil
}

// exceeded builds the typed error with the live count for the resource
func (t *Tracker) exceeded(ctx context.Context, tenantID uint, resource string, limit int) error {
	var current int64
	var err error
	switch resource {
	case ResourceVDR:
		current, err = t.db.CountDataRooms(ctx, tenantID)
	case ResourceAdminUser:
		current, err = t.db.CountTenantAdmins(ctx, tenantID)
	}
	if err != nil {
		t.logger.Warn("failed to count resource after quota rejection",
			zap.String("resource", resource),
			zap.Error(err))
	}
	return &QuotaExceededError{Resource: resource, Limit: limit, Current: current}
}
