package handler

import (
	"net/http"
	"strconv"

	"github.com/clearvault/clearvault/internal/common/errorx"
	"github.com/gin-gonic/gin"
)

// ListRecycleBin lists the soft-deleted contents of a data room
func (h *Handler) ListRecycleBin(c *gin.Context) {
	claims, ok := h.claims(c)
	if !ok {
		return
	}

	dataRoomID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(errorx.ErrInvalidInput.HTTPStatus, errorx.ErrInvalidInput)
		return
	}

	contents, err := h.recycle.List(c.Request.Context(), claims.UserID, uint(dataRoomID))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, contents)
}

// RestoreDocument restores a soft-deleted document
func (h *Handler) RestoreDocument(c *gin.Context) {
	claims, ok := h.claims(c)
	if !ok {
		return
	}

	documentID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(errorx.ErrInvalidInput.HTTPStatus, errorx.ErrInvalidInput)
		return
	}

	if err := h.recycle.RestoreDocument(c.Request.Context(), claims.UserID, uint(documentID)); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Document restored"})
}

// RestoreFolder restores a soft-deleted folder and its subtree
func (h *Handler) RestoreFolder(c *gin.Context) {
	claims, ok := h.claims(c)
	if !ok {
		return
	}

	folderID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(errorx.ErrInvalidInput.HTTPStatus, errorx.ErrInvalidInput)
		return
	}

	if err := h.recycle.RestoreFolder(c.Request.Context(), claims.UserID, uint(folderID)); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Folder restored"})
}

// PurgeDocument permanently deletes a document from the recycle bin
func (h *Handler) PurgeDocument(c *gin.Context) {
	claims, ok := h.claims(c)
	if !ok {
		return
	}

	documentID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(errorx.ErrInvalidInput.HTTPStatus, errorx.ErrInvalidInput)
		return
	}

	if err := h.recycle.PurgeDocument(c.Request.Context(), claims.UserID, uint(documentID)); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Document permanently deleted"})
}

// PurgeFolder permanently deletes a folder subtree from the recycle bin
func (h *Handler) PurgeFolder(c *gin.Context) {
	claims, ok := h.claims(c)
	if !ok {
		return
	}

	folderID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(errorx.ErrInvalidInput.HTTPStatus, errorx.ErrInvalidInput)
		return
	}

	if err := h.recycle.PurgeFolder(c.Request.Context(), claims.UserID, uint(folderID)); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Folder permanently deleted"})
}
