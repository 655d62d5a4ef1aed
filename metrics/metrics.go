package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the Prometheus metrics for the dashboard service. Each
// Collector owns its registry so several can coexist in tests.
type Collector struct {
	registry *prometheus.Registry

	BackendRequests        *prometheus.CounterVec
	BackendDuration        *prometheus.HistogramVec
	ActiveSessions         prometheus.Gauge
	SessionsTotal          *prometheus.CounterVec
	PlanLatency            prometheus.Histogram
	AdvisoriesPublished    *prometheus.CounterVec
	RateLimitRejections    prometheus.Counter
	BackendConnected       prometheus.Gauge
}

func New() *Collector {
	m := &Collector{
		registry: prometheus.NewRegistry(),
		BackendRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arogya_backend_requests_total",
				Help: "Backend requests by path and outcome (ok, error, cached).",
			},
			[]string{"path", "outcome"},
		),
		BackendDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "arogya_backend_request_duration_seconds",
				Help:    "Backend request latency in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"path"},
		),
		ActiveSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "arogya_dashboard_sessions_active",
				Help: "Number of currently mounted dashboard sessions.",
			},
		),
		SessionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arogya_dashboard_sessions_total",
				Help: "Dashboard sessions by load result (ready, failed).",
			},
			[]string{"result"},
		),
		PlanLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "arogya_agent_plan_latency_seconds",
				Help:    "Time from mount until the agent plan was installed.",
				Buckets: []float64{0.25, 0.5, 1, 1.5, 2, 5, 10, 15},
			},
		),
		AdvisoriesPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arogya_advisories_published_total",
				Help: "Advisory messages published by status.",
			},
			[]string{"status"},
		),
		RateLimitRejections: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "arogya_ratelimit_rejections_total",
				Help: "Requests rejected by the per-IP rate limiter.",
			},
		),
		BackendConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "arogya_backend_connected",
				Help: "1 when the backend answered the last health check.",
			},
		),
	}

	m.registry.MustRegister(
		m.BackendRequests,
		m.BackendDuration,
		m.ActiveSessions,
		m.SessionsTotal,
		m.PlanLatency,
		m.AdvisoriesPublished,
		m.RateLimitRejections,
		m.BackendConnected,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveBackend matches backend.ObserveFunc.
func (m *Collector) ObserveBackend(path, outcome string, elapsed time.Duration) {
	m.BackendRequests.WithLabelValues(path, outcome).Inc()
	if outcome != "cached" {
		m.BackendDuration.WithLabelValues(path).Observe(elapsed.Seconds())
	}
}

func (m *Collector) SetActiveSessions(n int) {
	m.ActiveSessions.Set(float64(n))
}

func (m *Collector) IncSessions(result string) {
	m.SessionsTotal.WithLabelValues(result).Inc()
}

func (m *Collector) ObservePlanLatency(d time.Duration) {
	m.PlanLatency.Observe(d.Seconds())
}

func (m *Collector) IncAdvisories(status string) {
	m.AdvisoriesPublished.WithLabelValues(status).Inc()
}

func (m *Collector) IncRateLimitRejections() {
	m.RateLimitRejections.Inc()
}

func (m *Collector) SetBackendConnected(ok bool) {
	if ok {
		m.BackendConnected.Set(1)
	} else {
		m.BackendConnected.Set(0)
	}
}

// Handler serves this collector's registry.
func (m *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
