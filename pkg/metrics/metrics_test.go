package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/clearvault/clearvault/internal/common/config"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_ScrapeIncludesDecisions(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New(config.MetricsConfig{})

	m.ObserveDecision("VIEW", true, "")
	m.ObserveDecision("VIEW", false, "NoResourceGrant")
	m.ObserveQuotaRejection("vdr")
	m.ObserveAuditDrop()

	r := gin.New()
	r.Use(m.GinMiddleware())
	r.GET("/metrics", m.Handler())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, `clearvault_access_decisions_total{action="VIEW",outcome="allow",reason=""} 1`)
	assert.Contains(t, body, `clearvault_access_decisions_total{action="VIEW",outcome="deny",reason="NoResourceGrant"} 1`)
	assert.Contains(t, body, `clearvault_quota_rejections_total{resource="vdr"} 1`)
	assert.Contains(t, body, "clearvault_audit_events_dropped_total 1")
}

func TestMetrics_NamespaceOverride(t *testing.T) {
	m := New(config.MetricsConfig{Namespace: "custom"})
	m.ObserveQuotaRejection("vdr")

	r := gin.New()
	r.GET("/metrics", m.Handler())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Contains(t, w.Body.String(), `custom_quota_rejections_total{resource="vdr"} 1`)
}
