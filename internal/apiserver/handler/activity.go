package handler

import (
	"net/http"
	"strconv"

	"github.com/clearvault/clearvault/internal/access"
	"github.com/clearvault/clearvault/internal/common/errorx"
	"github.com/gin-gonic/gin"
)

// GetDataRoomActivity returns recent audit entries for the tenant owning the
// data room. Gated on the VIEW_ACTIVITY capability, which administrators hold
// implicitly.
func (h *Handler) GetDataRoomActivity(c *gin.Context) {
	claims, ok := h.claims(c)
	if !ok {
		return
	}

	dataRoomID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(errorx.ErrInvalidInput.HTTPStatus, errorx.ErrInvalidInput)
		return
	}

	room, err := h.db.GetDataRoom(c.Request.Context(), uint(dataRoomID))
	if err != nil {
		h.respondError(c, err)
		return
	}

	ref := access.ResourceRef{Kind: access.KindDataRoom, ID: room.ID}
	d, err := h.evaluator.CanPerform(c.Request.Context(), claims.UserID, ref, access.ActionViewActivity, h.caller(c, claims))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !h.respondDecision(c, claims, ref, access.ActionViewActivity, d) {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	logs, err := h.db.ListAuditLogs(c.Request.Context(), room.TenantID, limit)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, logs)
}
