package engine

import (
	"time"

	"github.com/google/uuid"

	"arogyadash/dashboard"
)

type sessionEntry struct {
	session *dashboard.Session
}

// OpenSession creates, registers and mounts a new dashboard session. The
// session lives until CloseSession, idle expiry or Stop.
func (e *Engine) OpenSession() *dashboard.Session {
	id := uuid.NewString()
	s := dashboard.NewSession(id, dashboard.Sources{
		Hospitals:   e.backend,
		Alerts:      e.backend,
		Aggregation: e.backend,
		Plan:        e.planSource(),
	})
	e.watchSession(s)

	e.mu.Lock()
	e.sessions[id] = &sessionEntry{session: s}
	n := len(e.sessions)
	e.mu.Unlock()

	if e.metrics != nil {
		e.metrics.SetActiveSessions(n)
	}
	e.Events.Emit(Event{Type: EventSessionOpened, Payload: SessionEvent{SessionID: id}})

	s.Mount(e.baseCtx)
	return s
}

// Session returns the open session with id.
func (e *Engine) Session(id string) (*dashboard.Session, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	entry, ok := e.sessions[id]
	if !ok {
		return nil, false
	}
	return entry.session, true
}

func (e *Engine) SessionIDs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]string, 0, len(e.sessions))
	for id := range e.sessions {
		ids = append(ids, id)
	}
	return ids
}

func (e *Engine) SessionCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sessions)
}

// CloseSession unmounts and forgets the session. It reports whether the
// session was open.
func (e *Engine) CloseSession(id string) bool {
	return e.closeSession(id, "unmount")
}

func (e *Engine) closeSession(id, reason string) bool {
	e.mu.Lock()
	entry, ok := e.sessions[id]
	if ok {
		delete(e.sessions, id)
	}
	n := len(e.sessions)
	e.mu.Unlock()
	if !ok {
		return false
	}

	entry.session.Unmount()
	if e.metrics != nil {
		e.metrics.SetActiveSessions(n)
	}
	e.Events.Emit(Event{Type: EventSessionClosed, Payload: SessionEvent{SessionID: id, Reason: reason}})
	return true
}

// watchSession turns session commits into engine events. Listener calls are
// serialized per session, so the closure state needs no lock.
func (e *Engine) watchSession(s *dashboard.Session) {
	id := s.ID()
	phase := dashboard.PhaseLoading
	planStatus := dashboard.Pending

	s.OnChange(func(st dashboard.State) {
		e.Events.Emit(Event{Type: EventSessionChanged, Payload: SessionChangedEvent{SessionID: id, State: st}})

		if p := st.Phase(); p != phase {
			phase = p
			switch p {
			case dashboard.PhaseReady:
				if e.metrics != nil {
					e.metrics.IncSessions("ready")
				}
				e.Events.Emit(Event{Type: EventSessionLoaded, Payload: SessionEvent{SessionID: id}})
			case dashboard.PhaseFailed:
				if e.metrics != nil {
					e.metrics.IncSessions("failed")
				}
				e.Events.Emit(Event{Type: EventSessionFailed, Payload: SessionFailedEvent{SessionID: id, Error: st.ErrorMessage()}})
			}
		}

		if st.Plan.Status != planStatus {
			planStatus = st.Plan.Status
			switch planStatus {
			case dashboard.Success:
				if e.metrics != nil {
					e.metrics.ObservePlanLatency(time.Since(s.CreatedAt()))
				}
				e.Events.Emit(Event{Type: EventPlanReady, Payload: PlanReadyEvent{SessionID: id, Plan: st.Plan.Value}})
			case dashboard.Failure:
				e.Events.Emit(Event{Type: EventPlanFailed, Payload: PlanFailedEvent{SessionID: id, Error: st.PlanError()}})
			}
		}
	})
}

func (e *Engine) sessionIdle() time.Duration {
	e.cfg.RLock()
	defer e.cfg.RUnlock()
	return e.cfg.Web.SessionIdle
}

// reapIdle closes every session that has no attached stream and has not
// been touched within the idle window. It returns the number closed.
func (e *Engine) reapIdle(now time.Time) int {
	idle := e.sessionIdle()
	if idle <= 0 {
		return 0
	}

	e.mu.Lock()
	var expired []string
	for id, entry := range e.sessions {
		last, attached := entry.session.IdleSince()
		if !attached && now.Sub(last) > idle {
			expired = append(expired, id)
		}
	}
	e.mu.Unlock()

	for _, id := range expired {
		e.closeSession(id, "idle")
	}
	if len(expired) > 0 {
		e.logFn("engine: reaped %d idle sessions", len(expired))
	}
	return len(expired)
}

func (e *Engine) reapLoop() {
	defer e.wg.Done()
	every := e.sessionIdle() / 4
	if every < time.Second {
		every = time.Second
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-e.stopChan:
			return
		case now := <-ticker.C:
			e.reapIdle(now)
		}
	}
}
