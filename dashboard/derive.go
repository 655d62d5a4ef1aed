package dashboard

import (
	"math"
	"sort"
	"strings"

	"arogyadash/backend"
)

const (
	AlertsFallback = "Alert service unavailable"
	ChartFallback  = "No aggregation yet — run simulation."
)

// Filter narrows the hospital table. Zero values impose no constraint.
type Filter struct {
	City   string `json:"city"`
	Search string `json:"search"`
}

// Cities returns the distinct non-empty city names, sorted.
func Cities(hospitals []backend.Hospital) []string {
	seen := make(map[string]struct{}, len(hospitals))
	out := []string{}
	for _, h := range hospitals {
		c := h.Location.City
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// FilterHospitals keeps the hospitals whose city equals f.City ignoring case
// and whose name, id or city contains f.Search ignoring case. Order is kept.
func FilterHospitals(hospitals []backend.Hospital, f Filter) []backend.Hospital {
	needle := strings.ToLower(f.Search)
	out := []backend.Hospital{}
	for _, h := range hospitals {
		if f.City != "" && !strings.EqualFold(h.Location.City, f.City) {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(h.Name), needle) &&
			!strings.Contains(strings.ToLower(h.ID), needle) &&
			!strings.Contains(strings.ToLower(h.Location.City), needle) {
			continue
		}
		out = append(out, h)
	}
	return out
}

// CityLoad is one bar of the city occupancy chart.
type CityLoad struct {
	City      string `json:"city"`
	Occupancy int    `json:"occupancy"` // percent
	Critical  int    `json:"critical"`
}

// CityChart scales each city's occupancy ratio to a whole percentage.
func CityChart(agg *backend.Aggregation) []CityLoad {
	if agg == nil {
		return []CityLoad{}
	}
	out := make([]CityLoad, 0, len(agg.Cities))
	for _, c := range agg.Cities {
		out = append(out, CityLoad{
			City:      c.City,
			Occupancy: int(math.Round(c.Summary.Occupancy * 100)),
			Critical:  c.Summary.Alerts.Critical,
		})
	}
	return out
}

// AlertsPanel is the system alerts card.
type AlertsPanel struct {
	Available bool   `json:"available"`
	Critical  int    `json:"critical"`
	Warning   int    `json:"warning"`
	OK        int    `json:"ok"`
	Fallback  string `json:"fallback,omitempty"`
}

func BuildAlertsPanel(alerts *backend.AlertsSummary) AlertsPanel {
	if alerts == nil || alerts.Overall == nil {
		return AlertsPanel{Fallback: AlertsFallback}
	}
	return AlertsPanel{
		Available: true,
		Critical:  alerts.Overall.Critical,
		Warning:   alerts.Overall.Warning,
		OK:        alerts.Overall.OK,
	}
}
