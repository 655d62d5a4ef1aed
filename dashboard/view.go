package dashboard

import (
	"sync"

	"arogyadash/agent"
	"arogyadash/backend"
)

// View memoizes the derived projections of one session. Each projection is
// recomputed only when the slot it depends on (or the filter) changes.
type View struct {
	mu sync.Mutex

	citiesVersion uint64
	citiesValid   bool
	cities        []string

	filteredVersion uint64
	filteredFilter  Filter
	filteredValid   bool
	filtered        []backend.Hospital

	chartVersion uint64
	chartValid   bool
	chart        []CityLoad

	computes int
}

func NewView() *View { return &View{} }

func (v *View) Cities(s State) []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.citiesValid || v.citiesVersion != s.Hospitals.Version {
		v.cities = Cities(s.Hospitals.Value)
		v.citiesVersion = s.Hospitals.Version
		v.citiesValid = true
		v.computes++
	}
	return v.cities
}

func (v *View) Hospitals(s State, f Filter) []backend.Hospital {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.filteredValid || v.filteredVersion != s.Hospitals.Version || v.filteredFilter != f {
		v.filtered = FilterHospitals(s.Hospitals.Value, f)
		v.filteredVersion = s.Hospitals.Version
		v.filteredFilter = f
		v.filteredValid = true
		v.computes++
	}
	return v.filtered
}

func (v *View) Chart(s State) []CityLoad {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.chartValid || v.chartVersion != s.Aggregation.Version {
		v.chart = CityChart(s.Aggregation.Value)
		v.chartVersion = s.Aggregation.Version
		v.chartValid = true
		v.computes++
	}
	return v.chart
}

// AgentCard is the recommendation panel.
type AgentCard struct {
	Loading         bool        `json:"loading"`
	Error           string      `json:"error,omitempty"`
	Ready           bool        `json:"ready"`
	PredictedInflow int         `json:"predictedInflow"`
	AlertLevel      string      `json:"alertLevel,omitempty"`
	Urgency         string      `json:"urgency,omitempty"`
	Headline        string      `json:"headline,omitempty"`
	PublicAdvisory  string      `json:"publicAdvisory,omitempty"`
	PlanJSON        string      `json:"-"`
	Plan            *agent.Plan `json:"plan,omitempty"`
}

func BuildAgentCard(s State) AgentCard {
	card := AgentCard{Loading: s.PlanLoading(), Error: s.PlanError()}
	p := s.Plan.Value
	if s.Plan.Status != Success || p == nil {
		return card
	}
	card.Ready = true
	card.PredictedInflow = p.RoundedInflow()
	card.AlertLevel = p.MonitorReport.AlertLevel
	card.Urgency = p.MonitorReport.RecommendedUrgency
	card.Headline = p.Headline()
	card.PublicAdvisory = p.Advisory.PublicAdvisory
	card.PlanJSON = p.PrettyJSON()
	card.Plan = p
	return card
}

// Model is the render-ready dashboard.
type Model struct {
	SessionID      string             `json:"sessionId"`
	Phase          string             `json:"phase"`
	Loading        bool               `json:"loading"`
	Error          string             `json:"error,omitempty"`
	Filter         Filter             `json:"filter"`
	Cities         []string           `json:"cities"`
	Hospitals      []backend.Hospital `json:"hospitals"`
	TotalHospitals int                `json:"totalHospitals"`
	Alerts         AlertsPanel        `json:"alerts"`
	Chart          []CityLoad         `json:"chart"`
	ChartFallback  string             `json:"chartFallback,omitempty"`
	Agent          AgentCard          `json:"agent"`
}

// Build assembles the page model for s under filter f.
func (v *View) Build(s State, f Filter) Model {
	m := Model{
		Phase:          s.Phase().String(),
		Loading:        s.Loading(),
		Error:          s.ErrorMessage(),
		Filter:         f,
		Cities:         v.Cities(s),
		Hospitals:      v.Hospitals(s, f),
		TotalHospitals: len(s.Hospitals.Value),
		Alerts:         BuildAlertsPanel(s.Alerts.Value),
		Chart:          v.Chart(s),
		Agent:          BuildAgentCard(s),
	}
	if len(m.Chart) == 0 {
		m.ChartFallback = ChartFallback
	}
	return m
}
