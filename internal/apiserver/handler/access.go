package handler

import (
	"net/http"

	"github.com/clearvault/clearvault/internal/access"
	"github.com/clearvault/clearvault/internal/common/errorx"
	"github.com/gin-gonic/gin"
)

type accessCheckRequest struct {
	Kind   access.ResourceKind `json:"kind" binding:"required"`
	ID     uint                `json:"id" binding:"required"`
	Action access.Action       `json:"action" binding:"required"`
}

// CheckAccess evaluates an access question for the caller and returns the
// decision without performing the operation. Denials are recorded in the
// audit trail like any other deny.
func (h *Handler) CheckAccess(c *gin.Context) {
	claims, ok := h.claims(c)
	if !ok {
		return
	}

	var req accessCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(errorx.ErrInvalidInput.HTTPStatus, errorx.ErrInvalidInput)
		return
	}

	ref := access.ResourceRef{Kind: req.Kind, ID: req.ID}
	d, err := h.evaluator.CanPerform(c.Request.Context(), claims.UserID, ref, req.Action, h.caller(c, claims))
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.metrics.ObserveDecision(string(req.Action), d.Allowed, string(d.Reason))
	if !d.Allowed {
		h.audit.Record(auditDeny(claims.UserID, ref, req.Action, d, c.ClientIP()))
	}

	c.JSON(http.StatusOK, d)
}
