package agent

import (
	"encoding/json"
	"math"
)

// Response is the envelope returned by the recommendation service.
type Response struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Plan      *Plan  `json:"plan"`
}

// Plan is the surge-response plan produced by the agent pipeline.
type Plan struct {
	PredictedInflow    float64       `json:"predictedInflow"`
	MonitorReport      MonitorReport `json:"monitorReport"`
	RecommendedActions []string      `json:"recommendedActions"`
	Advisory           Advisory      `json:"advisory"`
	StaffingPlan       StaffingPlan  `json:"staffingPlan"`
	SuppliesPlan       SuppliesPlan  `json:"suppliesPlan"`
	AgentTrace         []TraceStep   `json:"agentTrace"`
	Timestamp          string        `json:"timestamp"`
	HospitalID         string        `json:"hospitalId"`
	RequestID          string        `json:"requestId"`
}

type MonitorReport struct {
	AlertLevel         string   `json:"alertLevel"`
	RecommendedUrgency string   `json:"recommendedUrgency"`
	RiskFactors        []string `json:"riskFactors"`
}

type Advisory struct {
	PublicAdvisory   string `json:"publicAdvisory"`
	PollutionCare    string `json:"pollutionCare"`
	Teleconsultation string `json:"teleconsultation"`
	TriageRules      string `json:"triageRules"`
}

type StaffingPlan struct {
	DoctorsNeeded      int `json:"doctorsNeeded"`
	NursesNeeded       int `json:"nursesNeeded"`
	SupportStaffNeeded int `json:"supportStaffNeeded"`
}

type SuppliesPlan struct {
	Beds             int      `json:"beds"`
	CommonMedicines  []string `json:"commonMedicines"`
	OxygenCylinders  int      `json:"oxygenCylinders"`
	SpecialMedicines []string `json:"specialMedicines"`
}

// TraceStep is one entry of the agent trace, in processing order.
type TraceStep struct {
	Agent     string `json:"agent"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// RoundedInflow returns the predicted inflow rounded to the nearest patient.
func (p *Plan) RoundedInflow() int {
	return int(math.Round(p.PredictedInflow))
}

// Headline returns the first recommended action, or "".
func (p *Plan) Headline() string {
	if len(p.RecommendedActions) == 0 {
		return ""
	}
	return p.RecommendedActions[0]
}

// Clone returns a deep copy.
func (p *Plan) Clone() *Plan {
	if p == nil {
		return nil
	}
	c := *p
	c.MonitorReport.RiskFactors = append([]string(nil), p.MonitorReport.RiskFactors...)
	c.RecommendedActions = append([]string(nil), p.RecommendedActions...)
	c.SuppliesPlan.CommonMedicines = append([]string(nil), p.SuppliesPlan.CommonMedicines...)
	c.SuppliesPlan.SpecialMedicines = append([]string(nil), p.SuppliesPlan.SpecialMedicines...)
	c.AgentTrace = append([]TraceStep(nil), p.AgentTrace...)
	return &c
}

// PrettyJSON renders the plan indented by two spaces.
func (p *Plan) PrettyJSON() string {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return ""
	}
	return string(data)
}
