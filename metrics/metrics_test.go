package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveBackend("/hospitals", "ok", 20*time.Millisecond)
	m.ObserveBackend("/hospitals", "cached", 0)
	m.SetActiveSessions(3)
	m.IncSessions("ready")
	m.ObservePlanLatency(time.Second)
	m.SetBackendConnected(true)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	out := string(body)

	for _, want := range []string{
		`arogya_backend_requests_total{outcome="ok",path="/hospitals"} 1`,
		`arogya_backend_requests_total{outcome="cached",path="/hospitals"} 1`,
		`arogya_dashboard_sessions_active 3`,
		`arogya_dashboard_sessions_total{result="ready"} 1`,
		`arogya_backend_connected 1`,
		`arogya_agent_plan_latency_seconds_count 1`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestCollectorsAreIndependent(t *testing.T) {
	// Two collectors must not collide on registration.
	a, b := New(), New()
	a.IncRateLimitRejections()

	rec := httptest.NewRecorder()
	b.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if strings.Contains(rec.Body.String(), "arogya_ratelimit_rejections_total 1") {
		t.Error("collector b saw collector a's counter")
	}
}
