package handler

import (
	"errors"
	"net/http"

	"github.com/clearvault/clearvault/internal/access"
	"github.com/clearvault/clearvault/internal/apiserver/database"
	"github.com/clearvault/clearvault/internal/apiserver/middleware"
	"github.com/clearvault/clearvault/internal/audit"
	"github.com/clearvault/clearvault/internal/auth/jwt"
	"github.com/clearvault/clearvault/internal/common/errorx"
	"github.com/clearvault/clearvault/internal/quota"
	"github.com/clearvault/clearvault/internal/recyclebin"
	"github.com/clearvault/clearvault/internal/tenantctx"
	"github.com/clearvault/clearvault/pkg/metrics"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler wires the HTTP surface to the access-control core
type Handler struct {
	db        database.Database
	jwt       *jwt.Service
	evaluator *access.Evaluator
	quota     *quota.Tracker
	resolver  *tenantctx.Resolver
	recycle   *recyclebin.Service
	audit     *audit.Recorder
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// New creates the API handler
func New(
	db database.Database,
	jwtService *jwt.Service,
	evaluator *access.Evaluator,
	tracker *quota.Tracker,
	resolver *tenantctx.Resolver,
	recycle *recyclebin.Service,
	recorder *audit.Recorder,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		db:        db,
		jwt:       jwtService,
		evaluator: evaluator,
		quota:     tracker,
		resolver:  resolver,
		recycle:   recycle,
		audit:     recorder,
		metrics:   m,
		logger:    logger.Named("handler"),
	}
}

// claims returns the validated JWT claims or aborts with 401
func (h *Handler) claims(c *gin.Context) (*jwt.Claims, bool) {
	claims, ok := middleware.ClaimsFromContext(c)
	if !ok {
		c.JSON(errorx.ErrUnauthorized.HTTPStatus, errorx.ErrUnauthorized)
		return nil, false
	}
	return claims, true
}

// caller builds the request-scoped facts the evaluator's account gate needs
func (h *Handler) caller(c *gin.Context, claims *jwt.Claims) access.Caller {
	return access.Caller{
		IP:                c.ClientIP(),
		TwoFactorVerified: claims.TwoFactorVerified,
	}
}

// respondError maps core errors to their HTTP representations. Denies and
// quota rejections are expected outcomes; only store failures reach the log
// as errors.
func (h *Handler) respondError(c *gin.Context, err error) {
	var quotaErr *quota.QuotaExceededError
	var tenantErr *tenantctx.TenantInvalidError

	switch {
	case errors.Is(err, database.ErrNotFound):
		c.JSON(errorx.ErrResourceNotFound.HTTPStatus, errorx.ErrResourceNotFound)
	case errors.As(err, &quotaErr):
		h.metrics.ObserveQuotaRejection(quotaErr.Resource)
		c.JSON(errorx.ErrQuotaExceeded.HTTPStatus, errorx.ErrQuotaExceeded.
			WithDetail("resource", quotaErr.Resource).
			WithDetail("limit", quotaErr.Limit).
			WithDetail("current", quotaErr.Current))
	case errors.As(err, &tenantErr):
		c.JSON(errorx.ErrTenantInvalid.HTTPStatus, errorx.ErrTenantInvalid.
			WithDetail("violations", tenantErr.Violations))
	case errors.Is(err, tenantctx.ErrNoSelection):
		c.JSON(errorx.ErrNoActiveTenant.HTTPStatus, errorx.ErrNoActiveTenant)
	case errors.Is(err, tenantctx.ErrNoAccess):
		c.JSON(errorx.ErrAccessDenied.HTTPStatus, errorx.ErrAccessDenied)
	case errors.Is(err, recyclebin.ErrAdministratorRequired):
		c.JSON(errorx.ErrAdministratorRequired.HTTPStatus, errorx.ErrAdministratorRequired)
	case errors.Is(err, recyclebin.ErrNotInRecycleBin):
		c.JSON(errorx.ErrInvalidInput.HTTPStatus, errorx.ErrInvalidInput.WithDetail("reason", "not in recycle bin"))
	default:
		h.logger.Error("request failed", zap.Error(err))
		c.JSON(errorx.ErrInternalServer.HTTPStatus, errorx.ErrInternalServer)
	}
}

// respondDecision renders a deny as 403 with its typed reason, recording the
// decision to metrics and, for denials, to the audit trail.
func (h *Handler) respondDecision(c *gin.Context, claims *jwt.Claims, ref access.ResourceRef, action access.Action, d access.Decision) bool {
	h.metrics.ObserveDecision(string(action), d.Allowed, string(d.Reason))
	if d.Allowed {
		return true
	}
	h.audit.Record(auditDeny(claims.UserID, ref, action, d, c.ClientIP()))
	c.JSON(http.StatusForbidden, gin.H{
		"error":  errorx.ErrAccessDenied.Message,
		"reason": d.Reason,
	})
	return false
}

// auditDeny builds the audit event for a denied decision
func auditDeny(userID uint, ref access.ResourceRef, action access.Action, d access.Decision, clientIP string) audit.Event {
	return audit.Event{
		UserID:   userID,
		Action:   string(action),
		Resource: ref.String(),
		Allowed:  false,
		Reason:   string(d.Reason),
		ClientIP: clientIP,
	}
}
