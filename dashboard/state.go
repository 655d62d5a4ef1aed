package dashboard

import (
	"arogyadash/agent"
	"arogyadash/backend"
)

// Status is the settlement state of one result slot.
type Status int

const (
	Pending Status = iota
	Success
	Failure
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Success:
		return "success"
	case Failure:
		return "failure"
	default:
		return "unknown"
	}
}

// Slot holds one independently settling result. Version increases on every
// settlement and keys the memoized projections.
type Slot[T any] struct {
	Status  Status
	Value   T
	Err     error
	Version uint64
}

func (s Slot[T]) succeed(v T) Slot[T] {
	return Slot[T]{Status: Success, Value: v, Version: s.Version + 1}
}

// fail records a failure. The value is reset to the zero value, which is how
// optional data is downgraded to "absent".
func (s Slot[T]) fail(err error) Slot[T] {
	var zero T
	return Slot[T]{Status: Failure, Value: zero, Err: err, Version: s.Version + 1}
}

// Phase is the page-level outcome derived from the slots.
type Phase int

const (
	PhaseLoading Phase = iota
	PhaseReady
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseReady:
		return "ready"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// DefaultErrorMessage is shown when the hospital request fails without a
// usable error text.
const DefaultErrorMessage = "Failed to load data"

// State is everything one mounted dashboard knows. Only the hospital list is
// required; alerts and aggregation are optional.
type State struct {
	Hospitals   Slot[[]backend.Hospital]
	Alerts      Slot[*backend.AlertsSummary]
	Aggregation Slot[*backend.Aggregation]
	Plan        Slot[*agent.Plan]
}

type ActionKind int

const (
	HospitalsLoaded ActionKind = iota + 1
	HospitalsFailed
	AlertsLoaded
	AlertsFailed
	AggregationLoaded
	AggregationFailed
	PlanLoaded
	PlanFailed
)

// Action is one settlement applied to State.
type Action struct {
	Kind        ActionKind
	Hospitals   []backend.Hospital
	Alerts      *backend.AlertsSummary
	Aggregation *backend.Aggregation
	Plan        *agent.Plan
	Err         error
}

// Apply returns the state after a. It does not modify s.
func (s State) Apply(a Action) State {
	switch a.Kind {
	case HospitalsLoaded:
		hs := a.Hospitals
		if hs == nil {
			hs = []backend.Hospital{}
		}
		s.Hospitals = s.Hospitals.succeed(hs)
	case HospitalsFailed:
		s.Hospitals = s.Hospitals.fail(a.Err)
	case AlertsLoaded:
		s.Alerts = s.Alerts.succeed(a.Alerts)
	case AlertsFailed:
		s.Alerts = s.Alerts.fail(a.Err)
	case AggregationLoaded:
		s.Aggregation = s.Aggregation.succeed(a.Aggregation)
	case AggregationFailed:
		s.Aggregation = s.Aggregation.fail(a.Err)
	case PlanLoaded:
		s.Plan = s.Plan.succeed(a.Plan)
	case PlanFailed:
		s.Plan = s.Plan.fail(a.Err)
	}
	return s
}

// Phase is failed as soon as the hospital list failed, ready once it
// succeeded, loading otherwise. The optional slots never affect it.
func (s State) Phase() Phase {
	switch s.Hospitals.Status {
	case Success:
		return PhaseReady
	case Failure:
		return PhaseFailed
	default:
		return PhaseLoading
	}
}

func (s State) Loading() bool { return s.Phase() == PhaseLoading }

// ErrorMessage is the text that replaces the loading indicator, or "".
func (s State) ErrorMessage() string {
	if s.Hospitals.Status != Failure {
		return ""
	}
	if s.Hospitals.Err == nil || s.Hospitals.Err.Error() == "" {
		return DefaultErrorMessage
	}
	return s.Hospitals.Err.Error()
}

// Settled reports whether all three backend reads have completed.
func (s State) Settled() bool {
	return s.Hospitals.Status != Pending &&
		s.Alerts.Status != Pending &&
		s.Aggregation.Status != Pending
}

func (s State) PlanLoading() bool { return s.Plan.Status == Pending }

// PlanError is the agent error text, or "".
func (s State) PlanError() string {
	if s.Plan.Status != Failure || s.Plan.Err == nil {
		return ""
	}
	return s.Plan.Err.Error()
}
