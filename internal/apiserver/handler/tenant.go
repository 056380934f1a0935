package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/clearvault/clearvault/internal/apiserver/database"
	"github.com/clearvault/clearvault/internal/common/errorx"
	"github.com/gin-gonic/gin"
)

type createTenantRequest struct {
	Name        string `json:"name" binding:"required"`
	Slug        string `json:"slug" binding:"required"`
	PlanID      uint   `json:"planId" binding:"required"`
	AdminUserID uint   `json:"adminUserId"` // defaults to the caller
	Settings    string `json:"settings"`
}

// gatePlatformAdmin verifies the caller holds the platform ADMIN role.
// Tenant lifecycle is a platform operation, not a tenant-level one.
func (h *Handler) gatePlatformAdmin(c *gin.Context) bool {
	claims, ok := h.claims(c)
	if !ok {
		return false
	}

	user, err := h.db.GetUser(c.Request.Context(), claims.UserID)
	if err != nil {
		h.respondError(c, err)
		return false
	}
	if user.Role != database.PlatformAdmin {
		c.JSON(errorx.ErrAccessDenied.HTTPStatus, errorx.ErrAccessDenied)
		return false
	}
	return true
}

// CreateTenant creates a tenant and enrolls its first TENANT_ADMIN in the
// same transaction, so a fresh tenant can always invite members.
func (h *Handler) CreateTenant(c *gin.Context) {
	claims, ok := h.claims(c)
	if !ok {
		return
	}
	if !h.gatePlatformAdmin(c) {
		return
	}

	var req createTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(errorx.ErrInvalidInput.HTTPStatus, errorx.ErrInvalidInput)
		return
	}

	if _, err := h.db.GetTenantBySlug(c.Request.Context(), req.Slug); err == nil {
		c.JSON(errorx.ErrResourceExists.HTTPStatus, errorx.ErrResourceExists.WithDetail("slug", req.Slug))
		return
	}

	plan, err := h.db.GetPlan(c.Request.Context(), req.PlanID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	adminUserID := claims.UserID
	if req.AdminUserID != 0 {
		if _, err := h.db.GetUser(c.Request.Context(), req.AdminUserID); err != nil {
			h.respondError(c, err)
			return
		}
		adminUserID = req.AdminUserID
	}

	tenant := &database.Tenant{
		Name:     req.Name,
		Slug:     req.Slug,
		Status:   database.TenantActive,
		PlanID:   plan.ID,
		Settings: req.Settings,
	}
	if plan.DurationDays > 0 {
		end := time.Now().AddDate(0, 0, plan.DurationDays)
		tenant.EndDate = &end
	}

	err = h.db.Transaction(c.Request.Context(), func(ctx context.Context) error {
		if err := h.db.CreateTenant(ctx, tenant); err != nil {
			return err
		}
		return h.quota.AddTenantAdmin(ctx, &database.TenantUser{
			TenantID: tenant.ID,
			UserID:   adminUserID,
			Role:     database.RoleTenantAdmin,
			Status:   database.TenantUserActive,
		})
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": tenant.ID})
}

// ListMyTenants lists the tenants the caller belongs to
func (h *Handler) ListMyTenants(c *gin.Context) {
	claims, ok := h.claims(c)
	if !ok {
		return
	}

	memberships, err := h.db.GetUserTenants(c.Request.Context(), claims.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	tenants := make([]*database.Tenant, 0, len(memberships))
	for _, tu := range memberships {
		if tu.Status != database.TenantUserActive {
			continue
		}
		tenant, err := h.db.GetTenant(c.Request.Context(), tu.TenantID)
		if err != nil {
			// Soft-deleted tenants simply drop out of the listing.
			continue
		}
		tenants = append(tenants, tenant)
	}

	c.JSON(http.StatusOK, tenants)
}

// GetTenantInfo handles getting tenant info by slug
func (h *Handler) GetTenantInfo(c *gin.Context) {
	slug := c.Param("slug")
	if slug == "" {
		c.JSON(errorx.ErrInvalidInput.HTTPStatus, errorx.ErrInvalidInput)
		return
	}

	tenant, err := h.db.GetTenantBySlug(c.Request.Context(), slug)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, tenant)
}

type updateTenantRequest struct {
	Name   string                `json:"name"`
	Status database.TenantStatus `json:"status"`
}

// UpdateTenant updates a tenant's name or lifecycle status. Platform-admin
// only: suspending or expiring a tenant locks out its own administrators.
func (h *Handler) UpdateTenant(c *gin.Context) {
	tenantID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(errorx.ErrInvalidInput.HTTPStatus, errorx.ErrInvalidInput)
		return
	}

	if !h.gatePlatformAdmin(c) {
		return
	}

	var req updateTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(errorx.ErrInvalidInput.HTTPStatus, errorx.ErrInvalidInput)
		return
	}

	tenant, err := h.db.GetTenant(c.Request.Context(), uint(tenantID))
	if err != nil {
		h.respondError(c, err)
		return
	}

	if req.Name != "" {
		tenant.Name = req.Name
	}
	if req.Status != "" {
		switch req.Status {
		case database.TenantActive, database.TenantSuspended, database.TenantExpired:
			tenant.Status = req.Status
		default:
			c.JSON(errorx.ErrInvalidInput.HTTPStatus, errorx.ErrInvalidInput.WithDetail("status", req.Status))
			return
		}
	}

	if err := h.db.UpdateTenant(c.Request.Context(), tenant); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, tenant)
}

// DeleteTenant soft-deletes a tenant; memberships keep the row recoverable.
// Platform-admin only.
func (h *Handler) DeleteTenant(c *gin.Context) {
	tenantID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(errorx.ErrInvalidInput.HTTPStatus, errorx.ErrInvalidInput)
		return
	}

	if !h.gatePlatformAdmin(c) {
		return
	}

	if _, err := h.db.GetTenant(c.Request.Context(), uint(tenantID)); err != nil {
		h.respondError(c, err)
		return
	}

	if err := h.db.DeleteTenant(c.Request.Context(), uint(tenantID)); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Tenant deleted"})
}

// SwitchTenant stores the caller's active-tenant selection for the session
func (h *Handler) SwitchTenant(c *gin.Context) {
	claims, ok := h.claims(c)
	if !ok {
		return
	}

	tenantID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(errorx.ErrInvalidInput.HTTPStatus, errorx.ErrInvalidInput)
		return
	}

	if err := h.resolver.SelectTenant(c.Request.Context(), claims.SessionID, claims.UserID, uint(tenantID)); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Tenant selected"})
}

// GetTenantContext returns the validated active-tenant view for the session
func (h *Handler) GetTenantContext(c *gin.Context) {
	claims, ok := h.claims(c)
	if !ok {
		return
	}

	tc, err := h.resolver.GetTenantContext(c.Request.Context(), claims.SessionID, claims.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, tc)
}

// GetTenantUsage returns the tenant's live consumption against plan limits
func (h *Handler) GetTenantUsage(c *gin.Context) {
	claims, ok := h.claims(c)
	if !ok {
		return
	}

	tenantID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(errorx.ErrInvalidInput.HTTPStatus, errorx.ErrInvalidInput)
		return
	}

	hasAccess, err := h.resolver.HasAccessToTenant(c.Request.Context(), claims.UserID, uint(tenantID))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !hasAccess {
		c.JSON(errorx.ErrAccessDenied.HTTPStatus, errorx.ErrAccessDenied)
		return
	}

	usage, err := h.quota.GetUsage(c.Request.Context(), uint(tenantID))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, usage)
}
