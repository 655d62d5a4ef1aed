package dashboard

import (
	"reflect"
	"testing"

	"arogyadash/backend"
)

func hospital(id, name, city string) backend.Hospital {
	return backend.Hospital{ID: id, Name: name, Location: backend.Location{City: city, State: "MH"}}
}

var sampleHospitals = []backend.Hospital{
	hospital("H-1", "City General", "Mumbai"),
	hospital("H-2", "Lakeside Clinic", "Pune"),
	hospital("H-3", "Sion Hospital", "mumbai"),
	hospital("H-4", "Ruby Hall", "Pune"),
	hospital("H-5", "Field Unit", ""),
	hospital("PN-9", "Sassoon", "Nagpur"),
}

func ids(hs []backend.Hospital) []string {
	out := []string{}
	for _, h := range hs {
		out = append(out, h.ID)
	}
	return out
}

func TestCities(t *testing.T) {
	got := Cities(sampleHospitals)
	want := []string{"Mumbai", "Nagpur", "Pune", "mumbai"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Cities = %v, want %v", got, want)
	}
	if got := Cities(nil); got == nil || len(got) != 0 {
		t.Errorf("Cities(nil) = %v, want empty", got)
	}
}

func TestFilterHospitals(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"no constraints", Filter{}, []string{"H-1", "H-2", "H-3", "H-4", "H-5", "PN-9"}},
		{"city case-insensitive exact", Filter{City: "MUMBAI"}, []string{"H-1", "H-3"}},
		{"city is not substring", Filter{City: "Mum"}, []string{}},
		{"search name", Filter{Search: "hall"}, []string{"H-4"}},
		{"search id", Filter{Search: "pn-"}, []string{"PN-9"}},
		{"search city", Filter{Search: "pun"}, []string{"H-2", "H-4"}},
		{"conjunctive", Filter{City: "pune", Search: "lake"}, []string{"H-2"}},
		{"conjunctive no overlap", Filter{City: "Nagpur", Search: "ruby"}, []string{}},
		{"whitespace search is a constraint", Filter{Search: " "}, []string{"H-1", "H-2", "H-3", "H-4", "H-5"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ids(FilterHospitals(sampleHospitals, tt.filter))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("FilterHospitals(%+v) = %v, want %v", tt.filter, got, tt.want)
			}
		})
	}
}

// Every hospital is in the result iff it satisfies both constraints.
func TestFilterHospitalsMembership(t *testing.T) {
	filters := []Filter{{}, {City: "pune"}, {Search: "h"}, {City: "Mumbai", Search: "sion"}, {Search: "zzz"}}
	for _, f := range filters {
		got := map[string]bool{}
		for _, h := range FilterHospitals(sampleHospitals, f) {
			got[h.ID] = true
		}
		for _, h := range sampleHospitals {
			want := matchesCity(h, f.City) && matchesSearch(h, f.Search)
			if got[h.ID] != want {
				t.Errorf("filter %+v: %s included=%v, want %v", f, h.ID, got[h.ID], want)
			}
		}
	}
}

func matchesCity(h backend.Hospital, city string) bool {
	if city == "" {
		return true
	}
	return lower(h.Location.City) == lower(city)
}

func matchesSearch(h backend.Hospital, s string) bool {
	if s == "" {
		return true
	}
	n := lower(s)
	return contains(lower(h.Name), n) || contains(lower(h.ID), n) || contains(lower(h.Location.City), n)
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + 32
		}
	}
	return string(b)
}

func contains(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}

func TestCityChart(t *testing.T) {
	agg := &backend.Aggregation{Cities: []backend.CityAggregation{
		{City: "Mumbai", Summary: backend.CitySummary{Occupancy: 0.73, Alerts: backend.AlertCounts{Critical: 4}}},
		{City: "Pune", Summary: backend.CitySummary{Occupancy: 0.125}},
		{City: "Nagpur", Summary: backend.CitySummary{Occupancy: 1}},
	}}
	got := CityChart(agg)
	want := []CityLoad{
		{City: "Mumbai", Occupancy: 73, Critical: 4},
		{City: "Pune", Occupancy: 13, Critical: 0},
		{City: "Nagpur", Occupancy: 100, Critical: 0},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("CityChart = %+v, want %+v", got, want)
	}
	if got := CityChart(nil); got == nil || len(got) != 0 {
		t.Errorf("CityChart(nil) = %v, want empty", got)
	}
}

func TestBuildAlertsPanel(t *testing.T) {
	if p := BuildAlertsPanel(nil); p.Available || p.Fallback != AlertsFallback {
		t.Errorf("nil alerts panel = %+v", p)
	}
	if p := BuildAlertsPanel(&backend.AlertsSummary{}); p.Available {
		t.Errorf("alerts without overall should be unavailable: %+v", p)
	}
	p := BuildAlertsPanel(&backend.AlertsSummary{Overall: &backend.AlertCounts{Critical: 1, Warning: 2, OK: 3}})
	if !p.Available || p.Critical != 1 || p.Warning != 2 || p.OK != 3 || p.Fallback != "" {
		t.Errorf("panel = %+v", p)
	}
}
