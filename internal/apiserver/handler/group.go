package handler

import (
	"net/http"
	"strconv"

	"github.com/clearvault/clearvault/internal/access"
	"github.com/clearvault/clearvault/internal/apiserver/database"
	"github.com/clearvault/clearvault/internal/common/errorx"
	"github.com/gin-gonic/gin"
)

type groupRequest struct {
	Name                 string             `json:"name" binding:"required"`
	Type                 database.GroupType `json:"type"`
	CanViewChecklist     bool               `json:"canViewDueDiligenceChecklist"`
	CanManagePermissions bool               `json:"canManageDocumentPermissions"`
	CanViewGroupUsers    bool               `json:"canViewGroupUsers"`
	CanManageUsers       bool               `json:"canManageUsers"`
	CanViewActivity      bool               `json:"canViewGroupActivity"`
}

type groupMemberRequest struct {
	UserID uint `json:"userId" binding:"required"`
}

// gateGroupManagement checks MANAGE_USERS on the data room owning the group
// operations. It renders the failure response itself and reports whether the
// caller may proceed.
func (h *Handler) gateGroupManagement(c *gin.Context, dataRoomID uint) bool {
	claims, ok := h.claims(c)
	if !ok {
		return false
	}

	ref := access.ResourceRef{Kind: access.KindDataRoom, ID: dataRoomID}
	d, err := h.evaluator.CanPerform(c.Request.Context(), claims.UserID, ref, access.ActionManageUsers, h.caller(c, claims))
	if err != nil {
		h.respondError(c, err)
		return false
	}
	return h.respondDecision(c, claims, ref, access.ActionManageUsers, d)
}

// ListGroups lists the groups of a data room
func (h *Handler) ListGroups(c *gin.Context) {
	claims, ok := h.claims(c)
	if !ok {
		return
	}

	dataRoomID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(errorx.ErrInvalidInput.HTTPStatus, errorx.ErrInvalidInput)
		return
	}

	// Any member of the data room may see its group roster.
	m, err := h.evaluator.LoadMembership(c.Request.Context(), uint(dataRoomID), claims.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !m.Exists() {
		c.JSON(errorx.ErrAccessDenied.HTTPStatus, errorx.ErrAccessDenied)
		return
	}

	groups, err := h.db.ListGroups(c.Request.Context(), uint(dataRoomID))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, groups)
}

// CreateGroup creates a group in a data room
func (h *Handler) CreateGroup(c *gin.Context) {
	dataRoomID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(errorx.ErrInvalidInput.HTTPStatus, errorx.ErrInvalidInput)
		return
	}

	var req groupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(errorx.ErrInvalidInput.HTTPStatus, errorx.ErrInvalidInput)
		return
	}
	if req.Type == "" {
		req.Type = database.GroupCustom
	}
	switch req.Type {
	case database.GroupAdministrator, database.GroupUser, database.GroupCustom:
	default:
		c.JSON(errorx.ErrInvalidInput.HTTPStatus, errorx.ErrInvalidInput.WithDetail("type", req.Type))
		return
	}

	if !h.gateGroupManagement(c, uint(dataRoomID)) {
		return
	}

	group := &database.Group{
		DataRoomID:           uint(dataRoomID),
		Type:                 req.Type,
		Name:                 req.Name,
		CanViewChecklist:     req.CanViewChecklist,
		CanManagePermissions: req.CanManagePermissions,
		CanViewGroupUsers:    req.CanViewGroupUsers,
		CanManageUsers:       req.CanManageUsers,
		CanViewActivity:      req.CanViewActivity,
	}
	if err := h.db.CreateGroup(c.Request.Context(), group); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, group)
}

// UpdateGroup updates a group's name and capability flags. The group type is
// fixed at creation; demoting the last ADMINISTRATOR group would orphan the
// data room.
func (h *Handler) UpdateGroup(c *gin.Context) {
	groupID, err := strconv.ParseUint(c.Param("groupId"), 10, 64)
	if err != nil {
		c.JSON(errorx.ErrInvalidInput.HTTPStatus, errorx.ErrInvalidInput)
		return
	}

	group, err := h.db.GetGroup(c.Request.Context(), uint(groupID))
	if err != nil {
		h.respondError(c, err)
		return
	}

	var req groupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(errorx.ErrInvalidInput.HTTPStatus, errorx.ErrInvalidInput)
		return
	}

	if !h.gateGroupManagement(c, group.DataRoomID) {
		return
	}

	group.Name = req.Name
	group.CanViewChecklist = req.CanViewChecklist
	group.CanManagePermissions = req.CanManagePermissions
	group.CanViewGroupUsers = req.CanViewGroupUsers
	group.CanManageUsers = req.CanManageUsers
	group.CanViewActivity = req.CanViewActivity

	if err := h.db.UpdateGroup(c.Request.Context(), group); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, group)
}

// DeleteGroup deletes a group along with its members and permission entries.
// The last ADMINISTRATOR group of a data room cannot be deleted.
func (h *Handler) DeleteGroup(c *gin.Context) {
	groupID, err := strconv.ParseUint(c.Param("groupId"), 10, 64)
	if err != nil {
		c.JSON(errorx.ErrInvalidInput.HTTPStatus, errorx.ErrInvalidInput)
		return
	}

	group, err := h.db.GetGroup(c.Request.Context(), uint(groupID))
	if err != nil {
		h.respondError(c, err)
		return
	}

	if !h.gateGroupManagement(c, group.DataRoomID) {
		return
	}

	if group.Type == database.GroupAdministrator {
		count, err := h.db.CountAdministratorGroups(c.Request.Context(), group.DataRoomID)
		if err != nil {
			h.respondError(c, err)
			return
		}
		if count <= 1 {
			c.JSON(errorx.ErrLastAdministratorGroup.HTTPStatus, errorx.ErrLastAdministratorGroup)
			return
		}
	}

	if err := h.db.DeleteGroup(c.Request.Context(), group.ID); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Group deleted"})
}

// ListGroupMembers lists the members of a group
func (h *Handler) ListGroupMembers(c *gin.Context) {
	claims, ok := h.claims(c)
	if !ok {
		return
	}

	groupID, err := strconv.ParseUint(c.Param("groupId"), 10, 64)
	if err != nil {
		c.JSON(errorx.ErrInvalidInput.HTTPStatus, errorx.ErrInvalidInput)
		return
	}

	group, err := h.db.GetGroup(c.Request.Context(), uint(groupID))
	if err != nil {
		h.respondError(c, err)
		return
	}

	// Member rosters are visible to administrators and to groups carrying the
	// view-group-users flag.
	m, err := h.evaluator.LoadMembership(c.Request.Context(), group.DataRoomID, claims.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !m.Admin && !h.canViewGroupUsers(c, m) {
		c.JSON(errorx.ErrAccessDenied.HTTPStatus, errorx.ErrAccessDenied)
		return
	}

	members, err := h.db.ListGroupMembers(c.Request.Context(), group.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, members)
}

// canViewGroupUsers reports whether any of the membership's groups carries
// the view-group-users flag. The flag is roster visibility only, so it is not
// part of the evaluator's capability set.
func (h *Handler) canViewGroupUsers(c *gin.Context, m *access.Membership) bool {
	for _, gid := range m.GroupIDs {
		g, err := h.db.GetGroup(c.Request.Context(), gid)
		if err != nil {
			continue
		}
		if g.CanViewGroupUsers {
			return true
		}
	}
	return false
}

// AddGroupMember adds a user to a group
func (h *Handler) AddGroupMember(c *gin.Context) {
	groupID, err := strconv.ParseUint(c.Param("groupId"), 10, 64)
	if err != nil {
		c.JSON(errorx.ErrInvalidInput.HTTPStatus, errorx.ErrInvalidInput)
		return
	}

	var req groupMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(errorx.ErrInvalidInput.HTTPStatus, errorx.ErrInvalidInput)
		return
	}

	group, err := h.db.GetGroup(c.Request.Context(), uint(groupID))
	if err != nil {
		h.respondError(c, err)
		return
	}

	if !h.gateGroupManagement(c, group.DataRoomID) {
		return
	}

	if _, err := h.db.GetUser(c.Request.Context(), req.UserID); err != nil {
		h.respondError(c, err)
		return
	}

	member := &database.GroupMember{GroupID: group.ID, UserID: req.UserID}
	if err := h.db.AddGroupMember(c.Request.Context(), member); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, member)
}

// RemoveGroupMember removes a user from a group
func (h *Handler) RemoveGroupMember(c *gin.Context) {
	groupID, err := strconv.ParseUint(c.Param("groupId"), 10, 64)
	if err != nil {
		c.JSON(errorx.ErrInvalidInput.HTTPStatus, errorx.ErrInvalidInput)
		return
	}
	userID, err := strconv.ParseUint(c.Param("userId"), 10, 64)
	if err != nil {
		c.JSON(errorx.ErrInvalidInput.HTTPStatus, errorx.ErrInvalidInput)
		return
	}

	group, err := h.db.GetGroup(c.Request.Context(), uint(groupID))
	if err != nil {
		h.respondError(c, err)
		return
	}

	if !h.gateGroupManagement(c, group.DataRoomID) {
		return
	}

	if err := h.db.RemoveGroupMember(c.Request.Context(), group.ID, uint(userID)); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Member removed"})
}
