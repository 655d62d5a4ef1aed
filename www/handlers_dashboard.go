package www

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"arogyadash/dashboard"
)

// loadWait bounds how long a request waits for a session's reads. The
// backend client enforces its own timeout, so this is only a backstop.
func (h *Handlers) loadWait() time.Duration {
	return h.engine.Backend().Timeout() + 2*time.Second
}

// handleDashboard mounts a session, waits for the backend reads and renders
// the page. The plan usually arrives later over /events.
func (h *Handlers) handleDashboard(w http.ResponseWriter, r *http.Request) {
	f := filterFromQuery(r)
	s := h.engine.OpenSession()

	ctx, cancel := context.WithTimeout(r.Context(), h.loadWait())
	defer cancel()
	if err := s.Wait(ctx); err != nil && r.Context().Err() != nil {
		// Client left before the page was ready.
		h.engine.CloseSession(s.ID())
		return
	}
	s.Touch()

	h.render(w, "dashboard.html", map[string]any{
		"Page":          "dashboard",
		"Model":         s.Model(f),
		"AgentSource":   h.agentSource(),
		"BackendOK":     h.engine.BackendConnected(),
		"Authenticated": h.isAuthenticated(r),
	})
}

func (h *Handlers) agentSource() string {
	cfg := h.engine.AppConfig()
	cfg.RLock()
	defer cfg.RUnlock()
	return cfg.Agent.Source
}

// apiSessionModel re-derives an open session's model under a new filter
// without refetching anything.
func (h *Handlers) apiSessionModel(w http.ResponseWriter, r *http.Request) {
	s, ok := h.engine.Session(chi.URLParam(r, "id"))
	if !ok {
		h.jsonError(w, "unknown session", http.StatusNotFound)
		return
	}
	s.Touch()
	h.jsonOK(w, s.Model(filterFromQuery(r)))
}

// withSession mounts a throwaway session for one API request, waits for the
// backend reads (and the plan when wantPlan is set) and unmounts it after fn
// returns.
func (h *Handlers) withSession(w http.ResponseWriter, r *http.Request, wantPlan bool, fn func(s *dashboard.Session)) {
	s := h.engine.OpenSession()
	defer h.engine.CloseSession(s.ID())

	ctx, cancel := context.WithTimeout(r.Context(), h.loadWait())
	defer cancel()
	if err := s.Wait(ctx); err != nil {
		h.jsonError(w, "timed out waiting for backend", http.StatusGatewayTimeout)
		return
	}
	if wantPlan {
		if err := s.WaitPlan(ctx); err != nil {
			h.jsonError(w, "timed out waiting for agent plan", http.StatusGatewayTimeout)
			return
		}
	}
	fn(s)
}

// requireLoaded writes a 502 when the hospital list failed and reports
// whether the caller may continue.
func (h *Handlers) requireLoaded(w http.ResponseWriter, st dashboard.State) bool {
	if st.Phase() == dashboard.PhaseFailed {
		h.jsonError(w, st.ErrorMessage(), http.StatusBadGateway)
		return false
	}
	return true
}
