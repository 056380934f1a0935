package handler

import (
	"net/http"
	"strconv"

	"github.com/clearvault/clearvault/internal/access"
	"github.com/clearvault/clearvault/internal/apiserver/database"
	"github.com/clearvault/clearvault/internal/common/errorx"
	"github.com/gin-gonic/gin"
)

type permissionRequest struct {
	GroupID uint `json:"groupId" binding:"required"`
	CanView bool `json:"canView"`
	CanEdit bool `json:"canEdit"`
}

// gatePermissionManagement checks MANAGE_PERMISSIONS on the resource's data
// room and renders the failure response itself.
func (h *Handler) gatePermissionManagement(c *gin.Context, dataRoomID uint) bool {
	claims, ok := h.claims(c)
	if !ok {
		return false
	}

	ref := access.ResourceRef{Kind: access.KindDataRoom, ID: dataRoomID}
	d, err := h.evaluator.CanPerform(c.Request.Context(), claims.UserID, ref, access.ActionManagePermissions, h.caller(c, claims))
	if err != nil {
		h.respondError(c, err)
		return false
	}
	return h.respondDecision(c, claims, ref, access.ActionManagePermissions, d)
}

// permissionGroup loads the grantee group and verifies it belongs to the same
// data room as the resource. Cross-room grants would silently never match.
func (h *Handler) permissionGroup(c *gin.Context, groupID, dataRoomID uint) (*database.Group, bool) {
	group, err := h.db.GetGroup(c.Request.Context(), groupID)
	if err != nil {
		h.respondError(c, err)
		return nil, false
	}
	if group.DataRoomID != dataRoomID {
		c.JSON(errorx.ErrInvalidInput.HTTPStatus, errorx.ErrInvalidInput.WithDetail("groupId", groupID))
		return nil, false
	}
	return group, true
}

// SetFolderPermission creates or replaces a group's explicit grant on a folder
func (h *Handler) SetFolderPermission(c *gin.Context) {
	folderID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(errorx.ErrInvalidInput.HTTPStatus, errorx.ErrInvalidInput)
		return
	}

	var req permissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(errorx.ErrInvalidInput.HTTPStatus, errorx.ErrInvalidInput)
		return
	}

	folder, err := h.db.GetFolder(c.Request.Context(), uint(folderID))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if folder.DeletedAt != nil {
		c.JSON(errorx.ErrResourceNotFound.HTTPStatus, errorx.ErrResourceNotFound)
		return
	}

	if !h.gatePermissionManagement(c, folder.DataRoomID) {
		return
	}
	group, ok := h.permissionGroup(c, req.GroupID, folder.DataRoomID)
	if !ok {
		return
	}

	perm := &database.FolderGroupPermission{
		FolderID: folder.ID,
		GroupID:  group.ID,
		CanView:  req.CanView,
		CanEdit:  req.CanEdit,
	}
	if err := h.db.UpsertFolderPermission(c.Request.Context(), perm); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, perm)
}

// DeleteFolderPermission removes a group's explicit grant on a folder, so the
// folder falls back to inheriting from its ancestors.
func (h *Handler) DeleteFolderPermission(c *gin.Context) {
	folderID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(errorx.ErrInvalidInput.HTTPStatus, errorx.ErrInvalidInput)
		return
	}
	groupID, err := strconv.ParseUint(c.Param("groupId"), 10, 64)
	if err != nil {
		c.JSON(errorx.ErrInvalidInput.HTTPStatus, errorx.ErrInvalidInput)
		return
	}

	folder, err := h.db.GetFolder(c.Request.Context(), uint(folderID))
	if err != nil {
		h.respondError(c, err)
		return
	}

	if !h.gatePermissionManagement(c, folder.DataRoomID) {
		return
	}

	if err := h.db.DeleteFolderPermission(c.Request.Context(), folder.ID, uint(groupID)); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Permission removed"})
}

// SetDocumentPermission creates or replaces a group's explicit grant on a document
func (h *Handler) SetDocumentPermission(c *gin.Context) {
	documentID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(errorx.ErrInvalidInput.HTTPStatus, errorx.ErrInvalidInput)
		return
	}

	var req permissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(errorx.ErrInvalidInput.HTTPStatus, errorx.ErrInvalidInput)
		return
	}

	doc, err := h.db.GetDocument(c.Request.Context(), uint(documentID))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if doc.DeletedAt != nil {
		c.JSON(errorx.ErrResourceNotFound.HTTPStatus, errorx.ErrResourceNotFound)
		return
	}

	if !h.gatePermissionManagement(c, doc.DataRoomID) {
		return
	}
	group, ok := h.permissionGroup(c, req.GroupID, doc.DataRoomID)
	if !ok {
		return
	}

	perm := &database.DocumentGroupPermission{
		DocumentID: doc.ID,
		GroupID:    group.ID,
		CanView:    req.CanView,
		CanEdit:    req.CanEdit,
	}
	if err := h.db.UpsertDocumentPermission(c.Request.Context(), perm); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, perm)
}

// DeleteDocumentPermission removes a group's explicit grant on a document
func (h *Handler) DeleteDocumentPermission(c *gin.Context) {
	documentID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(errorx.ErrInvalidInput.HTTPStatus, errorx.ErrInvalidInput)
		return
	}
	groupID, err := strconv.ParseUint(c.Param("groupId"), 10, 64)
	if err != nil {
		c.JSON(errorx.ErrInvalidInput.HTTPStatus, errorx.ErrInvalidInput)
		return
	}

	doc, err := h.db.GetDocument(c.Request.Context(), uint(documentID))
	if err != nil {
		h.respondError(c, err)
		return
	}

	if !h.gatePermissionManagement(c, doc.DataRoomID) {
		return
	}

	if err := h.db.DeleteDocumentPermission(c.Request.Context(), doc.ID, uint(groupID)); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Permission removed"})
}
