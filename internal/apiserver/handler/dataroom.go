package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/clearvault/clearvault/internal/access"
	"github.com/clearvault/clearvault/internal/apiserver/database"
	"github.com/clearvault/clearvault/internal/common/errorx"
	"github.com/gin-gonic/gin"
)

type createDataRoomRequest struct {
	TenantID uint   `json:"tenantId" binding:"required"`
	Name     string `json:"name" binding:"required"`
}

type createFolderRequest struct {
	Name     string `json:"name" binding:"required"`
	ParentID *uint  `json:"parentId"`
}

type createDocumentRequest struct {
	Name      string `json:"name" binding:"required"`
	FolderID  *uint  `json:"folderId"`
	SizeBytes int64  `json:"sizeBytes"`
}

// CreateDataRoom creates a data room, counted against the tenant's plan.
// The creator receives an initial ADMINISTRATOR group and a membership in it,
// so every room starts with at least one administrator.
func (h *Handler) CreateDataRoom(c *gin.Context) {
	claims, ok := h.claims(c)
	if !ok {
		return
	}

	var req createDataRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(errorx.ErrInvalidInput.HTTPStatus, errorx.ErrInvalidInput)
		return
	}

	tu, err := h.db.GetTenantUser(c.Request.Context(), req.TenantID, claims.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if tu.Role != database.RoleTenantAdmin || tu.Status != database.TenantUserActive {
		c.JSON(errorx.ErrAccessDenied.HTTPStatus, errorx.ErrAccessDenied)
		return
	}

	room := &database.DataRoom{TenantID: req.TenantID, Name: req.Name}
	err = h.db.Transaction(c.Request.Context(), func(ctx context.Context) error {
		if err := h.quota.CreateDataRoom(ctx, room); err != nil {
			return err
		}
		admins := &database.Group{
			DataRoomID: room.ID,
			Type:       database.GroupAdministrator,
			Name:       "Administrators",
		}
		if err := h.db.CreateGroup(ctx, admins); err != nil {
			return err
		}
		return h.db.AddGroupMember(ctx, &database.GroupMember{GroupID: admins.ID, UserID: claims.UserID})
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, room)
}

// ListDataRooms lists a tenant's data rooms
func (h *Handler) ListDataRooms(c *gin.Context) {
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

	rooms, err := h.db.ListDataRooms(c.Request.Context(), uint(tenantID))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, rooms)
}

// CreateFolder creates a folder in a data room. Creating under a parent needs
// EDIT on the parent; creating at the room root needs EDIT on the room, which
// only administrators hold.
func (h *Handler) CreateFolder(c *gin.Context) {
	claims, ok := h.claims(c)
	if !ok {
		return
	}

	dataRoomID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(errorx.ErrInvalidInput.HTTPStatus, errorx.ErrInvalidInput)
		return
	}

	var req createFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(errorx.ErrInvalidInput.HTTPStatus, errorx.ErrInvalidInput)
		return
	}

	ref := access.ResourceRef{Kind: access.KindDataRoom, ID: uint(dataRoomID)}
	if req.ParentID != nil {
		parent, err := h.db.GetFolder(c.Request.Context(), *req.ParentID)
		if err != nil {
			h.respondError(c, err)
			return
		}
		if parent.DataRoomID != uint(dataRoomID) {
			c.JSON(errorx.ErrInvalidInput.HTTPStatus, errorx.ErrInvalidInput.WithDetail("parentId", *req.ParentID))
			return
		}
		ref = access.ResourceRef{Kind: access.KindFolder, ID: parent.ID}
	}

	d, err := h.evaluator.CanPerform(c.Request.Context(), claims.UserID, ref, access.ActionEdit, h.caller(c, claims))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !h.respondDecision(c, claims, ref, access.ActionEdit, d) {
		return
	}

	folder := &database.Folder{
		DataRoomID: uint(dataRoomID),
		ParentID:   req.ParentID,
		Name:       req.Name,
	}
	if err := h.db.CreateFolder(c.Request.Context(), folder); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, folder)
}

// CreateDocument creates a document entry in a data room
func (h *Handler) CreateDocument(c *gin.Context) {
	claims, ok := h.claims(c)
	if !ok {
		return
	}

	dataRoomID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(errorx.ErrInvalidInput.HTTPStatus, errorx.ErrInvalidInput)
		return
	}

	var req createDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.SizeBytes < 0 {
		c.JSON(errorx.ErrInvalidInput.HTTPStatus, errorx.ErrInvalidInput)
		return
	}

	ref := access.ResourceRef{Kind: access.KindDataRoom, ID: uint(dataRoomID)}
	if req.FolderID != nil {
		folder, err := h.db.GetFolder(c.Request.Context(), *req.FolderID)
		if err != nil {
			h.respondError(c, err)
			return
		}
		if folder.DataRoomID != uint(dataRoomID) {
			c.JSON(errorx.ErrInvalidInput.HTTPStatus, errorx.ErrInvalidInput.WithDetail("folderId", *req.FolderID))
			return
		}
		ref = access.ResourceRef{Kind: access.KindFolder, ID: folder.ID}
	}

	d, err := h.evaluator.CanPerform(c.Request.Context(), claims.UserID, ref, access.ActionEdit, h.caller(c, claims))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !h.respondDecision(c, claims, ref, access.ActionEdit, d) {
		return
	}

	doc := &database.Document{
		DataRoomID: uint(dataRoomID),
		FolderID:   req.FolderID,
		Name:       req.Name,
		SizeBytes:  req.SizeBytes,
	}
	if err := h.db.CreateDocument(c.Request.Context(), doc); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, doc)
}

// GetDocument returns a document after a VIEW check
func (h *Handler) GetDocument(c *gin.Context) {
	claims, ok := h.claims(c)
	if !ok {
		return
	}

	documentID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(errorx.ErrInvalidInput.HTTPStatus, errorx.ErrInvalidInput)
		return
	}

	ref := access.ResourceRef{Kind: access.KindDocument, ID: uint(documentID)}
	d, err := h.evaluator.CanPerform(c.Request.Context(), claims.UserID, ref, access.ActionView, h.caller(c, claims))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !h.respondDecision(c, claims, ref, access.ActionView, d) {
		return
	}

	doc, err := h.db.GetDocument(c.Request.Context(), uint(documentID))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, doc)
}

// DeleteDocument moves a document to the recycle bin. Administrator-only.
func (h *Handler) DeleteDocument(c *gin.Context) {
	claims, ok := h.claims(c)
	if !ok {
		return
	}

	documentID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(errorx.ErrInvalidInput.HTTPStatus, errorx.ErrInvalidInput)
		return
	}

	ref := access.ResourceRef{Kind: access.KindDocument, ID: uint(documentID)}
	d, err := h.evaluator.CanPerform(c.Request.Context(), claims.UserID, ref, access.ActionDelete, h.caller(c, claims))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !h.respondDecision(c, claims, ref, access.ActionDelete, d) {
		return
	}

	if err := h.db.SoftDeleteDocument(c.Request.Context(), uint(documentID), claims.UserID); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Document moved to recycle bin"})
}

// DeleteFolder moves a folder and its subtree to the recycle bin.
// Administrator-only.
func (h *Handler) DeleteFolder(c *gin.Context) {
	claims, ok := h.claims(c)
	if !ok {
		return
	}

	folderID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(errorx.ErrInvalidInput.HTTPStatus, errorx.ErrInvalidInput)
		return
	}

	ref := access.ResourceRef{Kind: access.KindFolder, ID: uint(folderID)}
	d, err := h.evaluator.CanPerform(c.Request.Context(), claims.UserID, ref, access.ActionDelete, h.caller(c, claims))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !h.respondDecision(c, claims, ref, access.ActionDelete, d) {
		return
	}

	if err := h.db.SoftDeleteFolder(c.Request.Context(), uint(folderID), claims.UserID); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Folder moved to recycle bin"})
}
