package www

import (
	"net/http"

	"arogyadash/dashboard"
)

func (h *Handlers) apiDashboard(w http.ResponseWriter, r *http.Request) {
	f := filterFromQuery(r)
	h.withSession(w, r, true, func(s *dashboard.Session) {
		if !h.requireLoaded(w, s.Snapshot()) {
			return
		}
		h.jsonOK(w, s.Model(f))
	})
}

func (h *Handlers) apiHospitals(w http.ResponseWriter, r *http.Request) {
	f := filterFromQuery(r)
	h.withSession(w, r, false, func(s *dashboard.Session) {
		if !h.requireLoaded(w, s.Snapshot()) {
			return
		}
		m := s.Model(f)
		h.jsonOK(w, map[string]any{
			"hospitals": m.Hospitals,
			"total":     m.TotalHospitals,
			"filter":    m.Filter,
		})
	})
}

func (h *Handlers) apiCities(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, false, func(s *dashboard.Session) {
		if !h.requireLoaded(w, s.Snapshot()) {
			return
		}
		h.jsonOK(w, s.Model(dashboard.Filter{}).Cities)
	})
}

func (h *Handlers) apiChart(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, false, func(s *dashboard.Session) {
		if !h.requireLoaded(w, s.Snapshot()) {
			return
		}
		m := s.Model(dashboard.Filter{})
		h.jsonOK(w, map[string]any{
			"chart":    m.Chart,
			"fallback": m.ChartFallback,
		})
	})
}

func (h *Handlers) apiAlerts(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, false, func(s *dashboard.Session) {
		if !h.requireLoaded(w, s.Snapshot()) {
			return
		}
		h.jsonOK(w, s.Model(dashboard.Filter{}).Alerts)
	})
}

func (h *Handlers) apiPlan(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, true, func(s *dashboard.Session) {
		st := s.Snapshot()
		if msg := st.PlanError(); msg != "" {
			h.jsonError(w, msg, http.StatusBadGateway)
			return
		}
		h.jsonOK(w, dashboard.BuildAgentCard(st))
	})
}

func (h *Handlers) apiHealthCheck(w http.ResponseWriter, r *http.Request) {
	h.jsonOK(w, map[string]any{
		"status":    "ok",
		"backend":   h.engine.BackendConnected(),
		"messaging": h.engine.MessagingConnected(),
		"sessions":  h.engine.SessionCount(),
		"streams":   h.eventHub.ClientCount(),
		"base_url":  h.engine.Backend().BaseURL(),
	})
}
