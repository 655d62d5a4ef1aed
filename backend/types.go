package backend

// Hospital is a single entry of GET /hospitals.
type Hospital struct {
	MongoID   string    `json:"_id,omitempty"`
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Location  Location  `json:"location"`
	Resources Resources `json:"resources"`
}

type Location struct {
	City  string `json:"city"`
	State string `json:"state"`
}

type Resources struct {
	Beds        int `json:"beds"`
	Ventilators int `json:"ventilators"`
}

// HospitalsResponse wraps the hospital list.
type HospitalsResponse struct {
	Data []Hospital `json:"data"`
}

// AlertCounts counts hospitals per alert state.
type AlertCounts struct {
	Critical int `json:"CRITICAL"`
	Warning  int `json:"WARNING"`
	OK       int `json:"OK"`
}

// AlertsSummary is the body of GET /alerts. Overall is nil when the backend
// omits it.
type AlertsSummary struct {
	Overall *AlertCounts           `json:"overall"`
	ByCity  map[string]AlertCounts `json:"byCity,omitempty"`
}

// Aggregation is the body of GET /simulate/aggregate?by=city.
type Aggregation struct {
	Cities []CityAggregation `json:"cities"`
}

type CityAggregation struct {
	City    string      `json:"city"`
	Summary CitySummary `json:"summary"`
}

type CitySummary struct {
	Occupancy float64     `json:"occupancy"` // 0..1
	Alerts    AlertCounts `json:"alerts"`
}
