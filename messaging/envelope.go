package messaging

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"arogyadash/agent"
)

// Version is the envelope schema version.
const Version = 1

const TypeSurgeAdvisory = "surge.advisory"

// Envelope wraps every outbound message.
type Envelope struct {
	Version   int             `json:"v"`
	Type      string          `json:"type"`
	ID        string          `json:"id"`
	Source    string          `json:"src"`
	Timestamp time.Time       `json:"ts"`
	Payload   json.RawMessage `json:"p"`
}

// NewEnvelope marshals payload into a fresh envelope with a random ID.
func NewEnvelope(msgType, source string, payload any) (*Envelope, error) {
	p, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	return &Envelope{
		Version:   Version,
		Type:      msgType,
		ID:        uuid.NewString(),
		Source:    source,
		Timestamp: time.Now().UTC(),
		Payload:   p,
	}, nil
}

func (e *Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

func (e *Envelope) DecodePayload(target any) error {
	return json.Unmarshal(e.Payload, target)
}

// AdvisoryPayload summarises a surge plan for downstream consumers.
type AdvisoryPayload struct {
	SessionID       string   `json:"session_id,omitempty"`
	HospitalID      string   `json:"hospital_id"`
	RequestID       string   `json:"request_id"`
	AlertLevel      string   `json:"alert_level"`
	Urgency         string   `json:"urgency"`
	PredictedInflow int      `json:"predicted_inflow"`
	Actions         []string `json:"actions"`
	PublicAdvisory  string   `json:"public_advisory"`
}

// NewAdvisory builds the advisory for p.
func NewAdvisory(sessionID string, p *agent.Plan) AdvisoryPayload {
	actions := append([]string{}, p.RecommendedActions...)
	return AdvisoryPayload{
		SessionID:       sessionID,
		HospitalID:      p.HospitalID,
		RequestID:       p.RequestID,
		AlertLevel:      p.MonitorReport.AlertLevel,
		Urgency:         p.MonitorReport.RecommendedUrgency,
		PredictedInflow: p.RoundedInflow(),
		Actions:         actions,
		PublicAdvisory:  p.Advisory.PublicAdvisory,
	}
}

// ShouldAdvise reports whether a plan's alert level warrants an advisory.
func ShouldAdvise(p *agent.Plan) bool {
	if p == nil {
		return false
	}
	switch p.MonitorReport.AlertLevel {
	case "high", "critical":
		return true
	}
	return false
}
