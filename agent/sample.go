package agent

const sampleTraceTime = "Sat, 29 Nov 2025 04:25:28 GMT"

var samplePlan = Plan{
	PredictedInflow: 350.5685,
	MonitorReport: MonitorReport{
		AlertLevel:         "high",
		RecommendedUrgency: "activate surge",
		RiskFactors: []string{
			"AQI > 200",
			"Festival with high attendance",
			"Weather risk is moderate",
			"Disease sensitivity is moderate",
		},
	},
	RecommendedActions: []string{
		"Notify respiratory teams about alert level high",
		"Stage 700 oxygen cylinders near ER",
		"Activate surge bed protocol and inform city EMS",
	},
	Advisory: Advisory{
		PublicAdvisory:   "Due to high AQI and moderate weather risk, please take necessary precautions to protect yourself from air pollution and potential weather-related hazards.",
		PollutionCare:    "For respiratory cases, provide N95 masks, nebulizers, and oxygen therapy as needed. Consider relocating patients with severe respiratory issues to a separate ward.",
		Teleconsultation: "Implement load balancing by allocating 30% of remote consultations to respiratory cases, 20% to high-risk patients, and 50% to general cases.",
		TriageRules:      "Prioritize patients with respiratory issues and those with pre-existing conditions, followed by patients with moderate to severe injuries.",
	},
	StaffingPlan: StaffingPlan{
		DoctorsNeeded:      15,
		NursesNeeded:       60,
		SupportStaffNeeded: 30,
	},
	SuppliesPlan: SuppliesPlan{
		Beds:             350,
		CommonMedicines:  []string{"Paracetamol", "Ibuprofen"},
		OxygenCylinders:  700,
		SpecialMedicines: []string{"Insulin", "Epinephrine"},
	},
	AgentTrace: []TraceStep{
		{Agent: "prediction_api", Message: "Fetched predictions", Timestamp: sampleTraceTime},
		{Agent: "monitor", Message: "Alert high", Timestamp: sampleTraceTime},
		{Agent: "staffing_planner", Message: "Staffing plan ready", Timestamp: sampleTraceTime},
		{Agent: "supplies_planner", Message: "Supplies plan ready", Timestamp: sampleTraceTime},
		{Agent: "advisory", Message: "Advisory drafted", Timestamp: "Sat, 29 Nov 2025 04:25:29 GMT"},
	},
	Timestamp:  "Sat, 29 Nov 2025 04:25:29 GMT",
	HospitalID: "HOSP-123",
	RequestID:  "de7c286d-2f62-462f-b406-289ca5412a07",
}

// SampleResponse returns a fresh copy of the canned recommendation.
func SampleResponse() *Response {
	return &Response{
		Status:    "success",
		Timestamp: "2025-11-29T04:25:29.081180",
		Plan:      samplePlan.Clone(),
	}
}
