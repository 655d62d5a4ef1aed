package dashboard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"arogyadash/agent"
	"arogyadash/backend"
)

// --- Fake sources ---

type fakeBackend struct {
	hospitals    []backend.Hospital
	hospitalsErr error
	alerts       *backend.AlertsSummary
	alertsErr    error
	agg          *backend.Aggregation
	aggErr       error

	// gate, when non-nil, blocks every call until closed. Calls ignore ctx so
	// tests can simulate a late response after unmount.
	gate chan struct{}
}

func (f *fakeBackend) wait() {
	if f.gate != nil {
		<-f.gate
	}
}

func (f *fakeBackend) ListHospitals(context.Context) ([]backend.Hospital, error) {
	f.wait()
	return f.hospitals, f.hospitalsErr
}

func (f *fakeBackend) GetAlerts(context.Context) (*backend.AlertsSummary, error) {
	f.wait()
	return f.alerts, f.alertsErr
}

func (f *fakeBackend) AggregateByCity(context.Context) (*backend.Aggregation, error) {
	f.wait()
	return f.agg, f.aggErr
}

type gatedPlan struct {
	gate chan struct{}
}

func (g *gatedPlan) FetchPlan(context.Context) (*agent.Response, error) {
	<-g.gate
	return agent.SampleResponse(), nil
}

func newTestSession(b *fakeBackend, plan agent.PlanSource) *Session {
	return NewSession("test", Sources{Hospitals: b, Alerts: b, Aggregation: b, Plan: plan})
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func fullBackend() *fakeBackend {
	return &fakeBackend{
		hospitals: sampleHospitals,
		alerts:    &backend.AlertsSummary{Overall: &backend.AlertCounts{Critical: 2, Warning: 3, OK: 9}},
		agg: &backend.Aggregation{Cities: []backend.CityAggregation{
			{City: "Mumbai", Summary: backend.CitySummary{Occupancy: 0.73, Alerts: backend.AlertCounts{Critical: 2}}},
		}},
	}
}

func TestSessionFullLoadAndPlan(t *testing.T) {
	s := newTestSession(fullBackend(), agent.NewMockSource(20*time.Millisecond))
	s.Mount(context.Background())
	defer s.Unmount()

	if err := s.Wait(waitCtx(t)); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	m := s.Model(Filter{})
	if m.Phase != "ready" {
		t.Fatalf("phase = %s, want ready", m.Phase)
	}
	if !m.Alerts.Available || m.Alerts.Critical != 2 {
		t.Errorf("alerts = %+v", m.Alerts)
	}
	if len(m.Chart) != 1 || m.Chart[0].Occupancy != 73 {
		t.Errorf("chart = %+v", m.Chart)
	}

	if err := s.WaitPlan(waitCtx(t)); err != nil {
		t.Fatalf("WaitPlan: %v", err)
	}
	m = s.Model(Filter{})
	if !m.Agent.Ready {
		t.Fatalf("agent card not ready: %+v", m.Agent)
	}
	if m.Agent.PredictedInflow != 351 {
		t.Errorf("PredictedInflow = %d, want 351", m.Agent.PredictedInflow)
	}
	if m.Agent.AlertLevel != "high" {
		t.Errorf("AlertLevel = %q, want high", m.Agent.AlertLevel)
	}
	if m.SessionID != "test" {
		t.Errorf("SessionID = %q", m.SessionID)
	}
}

func TestSessionPlanArrivesAfterDelay(t *testing.T) {
	s := newTestSession(fullBackend(), agent.NewMockSource(150*time.Millisecond))
	s.Mount(context.Background())
	defer s.Unmount()

	if err := s.Wait(waitCtx(t)); err != nil {
		t.Fatal(err)
	}
	if !s.Snapshot().PlanLoading() {
		t.Error("plan resolved before its delay")
	}
	if err := s.WaitPlan(waitCtx(t)); err != nil {
		t.Fatal(err)
	}
	if s.Snapshot().PlanLoading() {
		t.Error("plan still loading after WaitPlan")
	}
}

func TestSessionHospitalsFailure(t *testing.T) {
	b := fullBackend()
	b.hospitalsErr = errors.New("backend GET /hospitals: dial tcp: connection refused")
	s := newTestSession(b, agent.NewMockSource(0))
	s.Mount(context.Background())
	defer s.Unmount()

	if err := s.Wait(waitCtx(t)); err != nil {
		t.Fatal(err)
	}
	m := s.Model(Filter{})
	if m.Phase != "failed" || m.Loading {
		t.Fatalf("phase/loading = %s/%v", m.Phase, m.Loading)
	}
	if m.Error != b.hospitalsErr.Error() {
		t.Errorf("Error = %q", m.Error)
	}
	if len(m.Hospitals) != 0 {
		t.Errorf("hospital table populated: %v", ids(m.Hospitals))
	}
}

func TestSessionOptionalFailuresTolerated(t *testing.T) {
	tests := []struct {
		name      string
		alertsErr error
		aggErr    error
	}{
		{"alerts down", errors.New("alerts 500"), nil},
		{"aggregation down", nil, errors.New("aggregate 500")},
		{"both down", errors.New("alerts 500"), errors.New("aggregate 500")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := fullBackend()
			b.alertsErr = tt.alertsErr
			b.aggErr = tt.aggErr
			if tt.alertsErr != nil {
				b.alerts = nil
			}
			if tt.aggErr != nil {
				b.agg = nil
			}
			s := newTestSession(b, agent.NewMockSource(0))
			s.Mount(context.Background())
			defer s.Unmount()
			if err := s.Wait(waitCtx(t)); err != nil {
				t.Fatal(err)
			}

			m := s.Model(Filter{})
			if m.Phase != "ready" || m.Error != "" {
				t.Fatalf("phase/error = %s/%q, want ready", m.Phase, m.Error)
			}
			if len(m.Hospitals) != len(sampleHospitals) {
				t.Errorf("hospitals = %d, want %d", len(m.Hospitals), len(sampleHospitals))
			}
			if (tt.alertsErr != nil) == m.Alerts.Available {
				t.Errorf("alerts available = %v", m.Alerts.Available)
			}
			if tt.alertsErr != nil && m.Alerts.Fallback != AlertsFallback {
				t.Errorf("alerts fallback = %q", m.Alerts.Fallback)
			}
			if tt.aggErr != nil && (len(m.Chart) != 0 || m.ChartFallback != ChartFallback) {
				t.Errorf("chart = %v fallback %q", m.Chart, m.ChartFallback)
			}
			if tt.aggErr == nil && len(m.Chart) != 1 {
				t.Errorf("chart = %v, want 1 entry", m.Chart)
			}
		})
	}
}

func TestSessionNoMutationAfterUnmount(t *testing.T) {
	b := fullBackend()
	b.gate = make(chan struct{})
	plan := &gatedPlan{gate: make(chan struct{})}
	s := newTestSession(b, plan)

	var mu sync.Mutex
	calls := 0
	s.OnChange(func(State) {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	s.Mount(context.Background())
	before := s.Snapshot()
	s.Unmount()

	// Late resolution of every pending read and of the plan.
	close(b.gate)
	close(plan.gate)
	if err := s.Wait(waitCtx(t)); err != nil {
		t.Fatal(err)
	}
	if err := s.WaitPlan(waitCtx(t)); err != nil {
		t.Fatal(err)
	}

	after := s.Snapshot()
	if after.Hospitals.Version != before.Hospitals.Version ||
		after.Alerts.Version != before.Alerts.Version ||
		after.Aggregation.Version != before.Aggregation.Version ||
		after.Plan.Version != before.Plan.Version {
		t.Errorf("state mutated after unmount: before %+v after %+v", before, after)
	}
	if after.Phase() != PhaseLoading {
		t.Errorf("phase = %v, want loading (nothing committed)", after.Phase())
	}
	mu.Lock()
	defer mu.Unlock()
	if calls != 0 {
		t.Errorf("listener called %d times after unmount", calls)
	}
}

func TestSessionUnmountCancelsMockTimer(t *testing.T) {
	s := newTestSession(fullBackend(), agent.NewMockSource(time.Hour))
	s.Mount(context.Background())
	if err := s.Wait(waitCtx(t)); err != nil {
		t.Fatal(err)
	}
	s.Unmount()
	// The hour-long timer is abandoned, not awaited.
	if err := s.WaitPlan(waitCtx(t)); err != nil {
		t.Fatalf("plan fetch did not stop on unmount: %v", err)
	}
	if !s.Snapshot().PlanLoading() {
		t.Error("plan slot changed after unmount")
	}
	if !s.Closed() {
		t.Error("Closed = false")
	}
}

func TestSessionListenerOrderAndMountOnce(t *testing.T) {
	s := newTestSession(fullBackend(), agent.NewMockSource(0))
	var mu sync.Mutex
	var versions []uint64
	s.OnChange(func(st State) {
		mu.Lock()
		versions = append(versions, st.Hospitals.Version+st.Alerts.Version+st.Aggregation.Version+st.Plan.Version)
		mu.Unlock()
	})
	s.Mount(context.Background())
	s.Mount(context.Background())
	defer s.Unmount()

	if err := s.Wait(waitCtx(t)); err != nil {
		t.Fatal(err)
	}
	if err := s.WaitPlan(waitCtx(t)); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(versions) != 4 {
		t.Fatalf("listener calls = %d, want 4 (one per slot)", len(versions))
	}
	for i, v := range versions {
		if v != uint64(i+1) {
			t.Errorf("call %d saw total version %d, want %d", i, v, i+1)
		}
	}
}

func TestSessionMissingSources(t *testing.T) {
	s := NewSession("bare", Sources{})
	s.Mount(context.Background())
	defer s.Unmount()
	if err := s.Wait(waitCtx(t)); err != nil {
		t.Fatal(err)
	}
	if err := s.WaitPlan(waitCtx(t)); err != nil {
		t.Fatal(err)
	}
	st := s.Snapshot()
	if st.Phase() != PhaseFailed {
		t.Errorf("phase = %v, want failed", st.Phase())
	}
	if st.PlanError() == "" {
		t.Error("PlanError empty with no plan source")
	}
}

func TestSessionIdleTracking(t *testing.T) {
	s := NewSession("idle", Sources{})
	_, attached := s.IdleSince()
	if attached {
		t.Error("new session attached")
	}
	s.Attach()
	if _, attached := s.IdleSince(); !attached {
		t.Error("not attached after Attach")
	}
	s.Detach()
	s.Detach()
	if _, attached := s.IdleSince(); attached {
		t.Error("attached after Detach")
	}
}

func TestSessionUnmountWaitsForInFlightListener(t *testing.T) {
	plan := &gatedPlan{gate: make(chan struct{})}
	s := newTestSession(fullBackend(), plan)

	entered := make(chan struct{})
	release := make(chan struct{})
	var (
		mu       sync.Mutex
		returned bool
		late     int
		first    = true
	)
	s.OnChange(func(State) {
		mu.Lock()
		if returned {
			late++
		}
		block := first
		first = false
		mu.Unlock()
		if block {
			close(entered)
			<-release
		}
	})
	s.Mount(context.Background())

	select {
	case <-entered:
	case <-time.After(3 * time.Second):
		t.Fatal("listener never called")
	}

	done := make(chan struct{})
	go func() {
		s.Unmount()
		mu.Lock()
		returned = true
		mu.Unlock()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Unmount returned while a listener was still running")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Unmount did not return after the listener finished")
	}

	close(plan.gate)
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if late != 0 {
		t.Errorf("listener called %d times after Unmount returned", late)
	}
	if !s.Closed() {
		t.Error("session not closed")
	}
}

type nilPlan struct{}

func (nilPlan) FetchPlan(context.Context) (*agent.Response, error) { return nil, nil }

func TestSessionNilPlanResponseFails(t *testing.T) {
	s := newTestSession(fullBackend(), nilPlan{})
	s.Mount(context.Background())
	defer s.Unmount()

	if err := s.WaitPlan(waitCtx(t)); err != nil {
		t.Fatal(err)
	}
	st := s.Snapshot()
	if st.Plan.Status != Failure || st.PlanError() != "agent returned no plan" {
		t.Errorf("plan slot = %+v", st.Plan)
	}
}
