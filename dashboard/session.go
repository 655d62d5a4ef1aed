package dashboard

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"arogyadash/agent"
	"arogyadash/backend"
)

type HospitalLister interface {
	ListHospitals(ctx context.Context) ([]backend.Hospital, error)
}

type AlertsGetter interface {
	GetAlerts(ctx context.Context) (*backend.AlertsSummary, error)
}

type AggregationGetter interface {
	AggregateByCity(ctx context.Context) (*backend.Aggregation, error)
}

// Sources are the data providers a session reads from. *backend.Client
// satisfies the first three.
type Sources struct {
	Hospitals   HospitalLister
	Alerts      AlertsGetter
	Aggregation AggregationGetter
	Plan        agent.PlanSource
}

var (
	errNoSource  = errors.New("source not configured")
	errEmptyPlan = errors.New("agent returned no plan")
)

// Session is one mounted dashboard. Mount starts the reads, Unmount ends the
// session; after Unmount no result is committed and no listener is called.
type Session struct {
	id        string
	src       Sources
	view      *View
	createdAt time.Time

	notifyMu sync.Mutex // orders listener calls by commit

	mu        sync.Mutex
	state     State
	mounted   bool
	closed    bool
	cancel    context.CancelFunc
	listeners []func(State)
	lastSeen  time.Time
	attached  int

	loaded   chan struct{}
	planDone chan struct{}
}

func NewSession(id string, src Sources) *Session {
	now := time.Now()
	return &Session{
		id:        id,
		src:       src,
		view:      NewView(),
		createdAt: now,
		lastSeen:  now,
		loaded:    make(chan struct{}),
		planDone:  make(chan struct{}),
	}
}

func (s *Session) ID() string           { return s.id }
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// Mount issues the hospital, alerts and aggregation reads concurrently and
// the plan fetch independently, then returns. Calling it twice, or after
// Unmount, does nothing.
func (s *Session) Mount(ctx context.Context) {
	s.mu.Lock()
	if s.mounted || s.closed {
		s.mu.Unlock()
		return
	}
	s.mounted = true
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	go s.load(ctx)
	go s.fetchPlan(ctx)
}

func (s *Session) load(ctx context.Context) {
	defer close(s.loaded)

	var g errgroup.Group
	g.Go(func() error {
		if s.src.Hospitals == nil {
			s.dispatch(Action{Kind: HospitalsFailed, Err: errNoSource})
			return errNoSource
		}
		hs, err := s.src.Hospitals.ListHospitals(ctx)
		if err != nil {
			s.dispatch(Action{Kind: HospitalsFailed, Err: err})
			return err
		}
		s.dispatch(Action{Kind: HospitalsLoaded, Hospitals: hs})
		return nil
	})
	// Optional reads: failures become absent values and never fail the load.
	g.Go(func() error {
		if s.src.Alerts == nil {
			s.dispatch(Action{Kind: AlertsFailed, Err: errNoSource})
			return nil
		}
		alerts, err := s.src.Alerts.GetAlerts(ctx)
		if err != nil {
			s.dispatch(Action{Kind: AlertsFailed, Err: err})
			return nil
		}
		s.dispatch(Action{Kind: AlertsLoaded, Alerts: alerts})
		return nil
	})
	g.Go(func() error {
		if s.src.Aggregation == nil {
			s.dispatch(Action{Kind: AggregationFailed, Err: errNoSource})
			return nil
		}
		agg, err := s.src.Aggregation.AggregateByCity(ctx)
		if err != nil {
			s.dispatch(Action{Kind: AggregationFailed, Err: err})
			return nil
		}
		s.dispatch(Action{Kind: AggregationLoaded, Aggregation: agg})
		return nil
	})
	g.Wait()
}

func (s *Session) fetchPlan(ctx context.Context) {
	defer close(s.planDone)
	if s.src.Plan == nil {
		s.dispatch(Action{Kind: PlanFailed, Err: errNoSource})
		return
	}
	resp, err := s.src.Plan.FetchPlan(ctx)
	if err != nil {
		s.dispatch(Action{Kind: PlanFailed, Err: err})
		return
	}
	if resp == nil || resp.Plan == nil {
		s.dispatch(Action{Kind: PlanFailed, Err: errEmptyPlan})
		return
	}
	s.dispatch(Action{Kind: PlanLoaded, Plan: resp.Plan})
}

// dispatch commits a unless the session is closed, then notifies listeners
// with the new state. It reports whether the action was committed.
func (s *Session) dispatch(a Action) bool {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.state = s.state.Apply(a)
	st := s.state
	listeners := make([]func(State), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(st)
	}
	return true
}

// OnChange registers fn to be called after every committed change.
// fn must not call Unmount or any method that dispatches.
func (s *Session) OnChange(fn func(State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.listeners = append(s.listeners, fn)
}

// Unmount cancels in-flight work and closes the session. It waits for a
// notification already in progress, so no listener runs after it returns.
// Idempotent.
func (s *Session) Unmount() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.listeners = nil
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Wait blocks until the three backend reads have settled or ctx ends.
func (s *Session) Wait(ctx context.Context) error {
	select {
	case <-s.loaded:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitPlan blocks until the plan fetch has settled or ctx ends.
func (s *Session) WaitPlan(ctx context.Context) error {
	select {
	case <-s.planDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Model renders the current state under f.
func (s *Session) Model(f Filter) Model {
	m := s.view.Build(s.Snapshot(), f)
	m.SessionID = s.id
	return m
}

// Attach marks a live stream consumer; Detach releases it. Sessions with no
// attached consumer are subject to idle expiry.
func (s *Session) Attach() {
	s.mu.Lock()
	s.attached++
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

func (s *Session) Detach() {
	s.mu.Lock()
	if s.attached > 0 {
		s.attached--
	}
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

// Touch refreshes the idle timer.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

// IdleSince reports when the session was last used and whether a stream is
// currently attached.
func (s *Session) IdleSince() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen, s.attached > 0
}
