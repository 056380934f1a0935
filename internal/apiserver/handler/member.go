package handler

import (
	"net/http"
	"strconv"

	"github.com/clearvault/clearvault/internal/apiserver/database"
	"github.com/clearvault/clearvault/internal/common/errorx"
	"github.com/gin-gonic/gin"
)

type addTenantMemberRequest struct {
	UserID uint                    `json:"userId" binding:"required"`
	Role   database.TenantUserRole `json:"role"`
}

// gateTenantAdmin verifies the caller is an active TENANT_ADMIN of the tenant
func (h *Handler) gateTenantAdmin(c *gin.Context, tenantID uint) bool {
	claims, ok := h.claims(c)
	if !ok {
		return false
	}

	tu, err := h.db.GetTenantUser(c.Request.Context(), tenantID, claims.UserID)
	if err != nil {
		h.respondError(c, err)
		return false
	}
	if tu.Role != database.RoleTenantAdmin || tu.Status != database.TenantUserActive {
		c.JSON(errorx.ErrAccessDenied.HTTPStatus, errorx.ErrAccessDenied)
		return false
	}
	return true
}

// ListTenantMembers lists a tenant's memberships
func (h *Handler) ListTenantMembers(c *gin.Context) {
	tenantID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(errorx.ErrInvalidInput.HTTPStatus, errorx.ErrInvalidInput)
		return
	}

	if !h.gateTenantAdmin(c, uint(tenantID)) {
		return
	}

	members, err := h.db.ListTenantUsers(c.Request.Context(), uint(tenantID))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, members)
}

// AddTenantMember adds a user to a tenant. Granting TENANT_ADMIN goes through
// the quota tracker so the admin-seat limit cannot be raced past.
func (h *Handler) AddTenantMember(c *gin.Context) {
	tenantID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(errorx.ErrInvalidInput.HTTPStatus, errorx.ErrInvalidInput)
		return
	}

	var req addTenantMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(errorx.ErrInvalidInput.HTTPStatus, errorx.ErrInvalidInput)
		return
	}
	if req.Role == "" {
		req.Role = database.RoleMember
	}
	switch req.Role {
	case database.RoleTenantAdmin, database.RoleMember, database.RoleViewer:
	default:
		c.JSON(errorx.ErrInvalidInput.HTTPStatus, errorx.ErrInvalidInput.WithDetail("role", req.Role))
		return
	}

	if !h.gateTenantAdmin(c, uint(tenantID)) {
		return
	}

	if _, err := h.db.GetUser(c.Request.Context(), req.UserID); err != nil {
		h.respondError(c, err)
		return
	}

	tu := &database.TenantUser{
		TenantID: uint(tenantID),
		UserID:   req.UserID,
		Role:     req.Role,
		Status:   database.TenantUserActive,
	}
	if req.Role == database.RoleTenantAdmin {
		err = h.quota.AddTenantAdmin(c.Request.Context(), tu)
	} else {
		err = h.db.AddUserToTenant(c.Request.Context(), tu)
	}
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, tu)
}

// RemoveTenantMember removes a user from a tenant
func (h *Handler) RemoveTenantMember(c *gin.Context) {
	tenantID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(errorx.ErrInvalidInput.HTTPStatus, errorx.ErrInvalidInput)
		return
	}
	userID, err := strconv.ParseUint(c.Param("userId"), 10, 64)
	if err != nil {
		c.JSON(errorx.ErrInvalidInput.HTTPStatus, errorx.ErrInvalidInput)
		return
	}

	if !h.gateTenantAdmin(c, uint(tenantID)) {
		return
	}

	if err := h.db.RemoveUserFromTenant(c.Request.Context(), uint(tenantID), uint(userID)); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Member removed"})
}
