package dashboard

import (
	"errors"
	"testing"

	"arogyadash/agent"
	"arogyadash/backend"
)

func TestApplyPhases(t *testing.T) {
	var s State
	if s.Phase() != PhaseLoading || !s.Loading() {
		t.Fatalf("initial phase = %v", s.Phase())
	}
	if !s.PlanLoading() {
		t.Error("plan should start loading")
	}

	s = s.Apply(Action{Kind: AlertsFailed, Err: errors.New("alerts down")})
	s = s.Apply(Action{Kind: AggregationLoaded, Aggregation: &backend.Aggregation{}})
	if s.Phase() != PhaseLoading {
		t.Errorf("optional slots must not settle the phase, got %v", s.Phase())
	}
	if s.Settled() {
		t.Error("Settled with hospitals pending")
	}

	s = s.Apply(Action{Kind: HospitalsLoaded, Hospitals: nil})
	if s.Phase() != PhaseReady {
		t.Errorf("phase = %v, want ready", s.Phase())
	}
	if s.Hospitals.Value == nil {
		t.Error("nil hospital list should become empty list")
	}
	if !s.Settled() {
		t.Error("all three reads settled")
	}
	if s.Alerts.Status != Failure || s.Alerts.Value != nil {
		t.Errorf("alerts slot = %+v, want failure with absent value", s.Alerts)
	}
	if s.ErrorMessage() != "" {
		t.Errorf("ErrorMessage = %q on partial success", s.ErrorMessage())
	}
}

func TestHospitalsFailureFailsPhase(t *testing.T) {
	s := State{}.
		Apply(Action{Kind: AlertsLoaded, Alerts: &backend.AlertsSummary{}}).
		Apply(Action{Kind: AggregationLoaded, Aggregation: &backend.Aggregation{}}).
		Apply(Action{Kind: HospitalsFailed, Err: errors.New("backend GET /hospitals: connection refused")})

	if s.Phase() != PhaseFailed {
		t.Fatalf("phase = %v, want failed", s.Phase())
	}
	if s.Loading() {
		t.Error("loading indicator should be cleared on failure")
	}
	if s.ErrorMessage() != "backend GET /hospitals: connection refused" {
		t.Errorf("ErrorMessage = %q", s.ErrorMessage())
	}
	if len(s.Hospitals.Value) != 0 {
		t.Error("hospital table populated after failure")
	}
}

func TestErrorMessageDefault(t *testing.T) {
	s := State{}.Apply(Action{Kind: HospitalsFailed})
	if s.ErrorMessage() != DefaultErrorMessage {
		t.Errorf("ErrorMessage = %q, want %q", s.ErrorMessage(), DefaultErrorMessage)
	}
	s = State{}.Apply(Action{Kind: HospitalsFailed, Err: errors.New("")})
	if s.ErrorMessage() != DefaultErrorMessage {
		t.Errorf("ErrorMessage = %q, want %q", s.ErrorMessage(), DefaultErrorMessage)
	}
}

func TestApplyDoesNotMutateReceiver(t *testing.T) {
	before := State{}
	after := before.Apply(Action{Kind: PlanLoaded, Plan: agent.SampleResponse().Plan})
	if before.Plan.Status != Pending || before.Plan.Version != 0 {
		t.Errorf("receiver changed: %+v", before.Plan)
	}
	if after.Plan.Status != Success || after.Plan.Version != 1 {
		t.Errorf("after = %+v", after.Plan)
	}
	if after.PlanError() != "" {
		t.Errorf("PlanError = %q", after.PlanError())
	}
}

func TestPlanFailure(t *testing.T) {
	s := State{}.Apply(Action{Kind: PlanFailed, Err: errors.New("agent proxy: status \"error\"")})
	if s.PlanLoading() {
		t.Error("plan still loading after failure")
	}
	if s.PlanError() == "" {
		t.Error("PlanError empty")
	}
	card := BuildAgentCard(s)
	if card.Ready || card.Loading || card.Error == "" {
		t.Errorf("card = %+v", card)
	}
}

func TestViewMemoizes(t *testing.T) {
	v := NewView()
	s := State{}.
		Apply(Action{Kind: HospitalsLoaded, Hospitals: sampleHospitals}).
		Apply(Action{Kind: AggregationLoaded, Aggregation: &backend.Aggregation{Cities: []backend.CityAggregation{{City: "Pune", Summary: backend.CitySummary{Occupancy: 0.5}}}}})

	f := Filter{City: "pune"}
	v.Build(s, f)
	first := v.computes
	if first != 3 {
		t.Fatalf("computes after first build = %d, want 3", first)
	}

	// Unrelated slot changes leave every projection cached.
	s = s.Apply(Action{Kind: PlanLoaded, Plan: agent.SampleResponse().Plan})
	v.Build(s, f)
	if v.computes != first {
		t.Errorf("computes = %d after plan change, want %d", v.computes, first)
	}

	// Filter change recomputes only the filtered list.
	v.Build(s, Filter{Search: "ruby"})
	if v.computes != first+1 {
		t.Errorf("computes = %d after filter change, want %d", v.computes, first+1)
	}
}

func TestBuildModel(t *testing.T) {
	s := State{}.
		Apply(Action{Kind: HospitalsLoaded, Hospitals: sampleHospitals}).
		Apply(Action{Kind: AlertsFailed, Err: errors.New("down")}).
		Apply(Action{Kind: AggregationFailed, Err: errors.New("down")}).
		Apply(Action{Kind: PlanLoaded, Plan: agent.SampleResponse().Plan})

	m := NewView().Build(s, Filter{Search: "hospital"})
	if m.Phase != "ready" || m.Loading || m.Error != "" {
		t.Errorf("phase/loading/error = %s/%v/%q", m.Phase, m.Loading, m.Error)
	}
	if m.TotalHospitals != 6 || len(m.Hospitals) != 1 || m.Hospitals[0].ID != "H-3" {
		t.Errorf("hospitals = %v (total %d)", ids(m.Hospitals), m.TotalHospitals)
	}
	if m.Alerts.Available || m.Alerts.Fallback != AlertsFallback {
		t.Errorf("alerts = %+v", m.Alerts)
	}
	if len(m.Chart) != 0 || m.ChartFallback != ChartFallback {
		t.Errorf("chart = %v fallback %q", m.Chart, m.ChartFallback)
	}
	if !m.Agent.Ready || m.Agent.PredictedInflow != 351 || m.Agent.AlertLevel != "high" {
		t.Errorf("agent = %+v", m.Agent)
	}
	if m.Agent.Urgency != "activate surge" || m.Agent.PlanJSON == "" {
		t.Errorf("agent urgency/json = %q/%d bytes", m.Agent.Urgency, len(m.Agent.PlanJSON))
	}
}
