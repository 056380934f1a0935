package metrics

import (
	"strconv"
	"time"

	"github.com/clearvault/clearvault/internal/common/config"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics aggregates the Prometheus collectors for the service
type Metrics struct {
	registry *prometheus.Registry

	httpReqCnt  *prometheus.CounterVec
	httpDur     *prometheus.HistogramVec
	decisionCnt *prometheus.CounterVec
	quotaCnt    *prometheus.CounterVec
	auditDrops  prometheus.Counter
}

// New creates a metrics registry with the standard process and Go collectors
func New(cfg config.MetricsConfig) *Metrics {
	ns := cfg.Namespace
	if ns == "" {
		ns = "clearvault"
	}
	buckets := cfg.Buckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	r := prometheus.NewRegistry()
	r.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	r.MustRegister(collectors.NewGoCollector())

	httpReqCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "http_requests_total"}, []string{"method", "route", "status"})
	httpDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: ns, Name: "http_request_duration_seconds", Buckets: buckets}, []string{"method", "route", "status"})
	r.MustRegister(httpReqCnt, httpDur)

	decisionCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "access_decisions_total"}, []string{"action", "outcome", "reason"})
	quotaCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "quota_rejections_total"}, []string{"resource"})
	auditDrops := prometheus.NewCounter(prometheus.CounterOpts{Namespace: ns, Name: "audit_events_dropped_total"})
	r.MustRegister(decisionCnt, quotaCnt, auditDrops)

	return &Metrics{
		registry:    r,
		httpReqCnt:  httpReqCnt,
		httpDur:     httpDur,
		decisionCnt: decisionCnt,
		quotaCnt:    quotaCnt,
		auditDrops:  auditDrops,
	}
}

// ObserveDecision records one access decision
func (m *Metrics) ObserveDecision(action string, allowed bool, reason string) {
	outcome := "deny"
	if allowed {
		outcome = "allow"
		reason = ""
	}
	m.decisionCnt.WithLabelValues(action, outcome, reason).Inc()
}

// ObserveQuotaRejection records one quota rejection
func (m *Metrics) ObserveQuotaRejection(resource string) {
	m.quotaCnt.WithLabelValues(resource).Inc()
}

// ObserveAuditDrop records one dropped audit event
func (m *Metrics) ObserveAuditDrop() {
	m.auditDrops.Inc()
}

// GinMiddleware records request counts and latencies per route
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		m.httpReqCnt.WithLabelValues(c.Request.Method, route, status).Inc()
		m.httpDur.WithLabelValues(c.Request.Method, route, status).Observe(time.Since(start).Seconds())
	}
}

// Handler exposes the registry for scraping
func (m *Metrics) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
