package engine

import (
	"arogyadash/agent"
	"arogyadash/dashboard"
)

const (
	EventSessionOpened EventType = iota + 1
	EventSessionChanged
	EventSessionLoaded
	EventSessionFailed
	EventPlanReady
	EventPlanFailed
	EventSessionClosed
	EventBackendConnected
	EventBackendDisconnected
	EventMessagingConnected
	EventMessagingDisconnected
	EventConfigReloaded
)

// --- Event payloads ---

type SessionEvent struct {
	SessionID string
	Reason    string // set on close: "unmount", "idle", "shutdown"
}

type SessionChangedEvent struct {
	SessionID string
	State     dashboard.State
}

type SessionFailedEvent struct {
	SessionID string
	Error     string
}

type PlanReadyEvent struct {
	SessionID string
	Plan      *agent.Plan
}

type PlanFailedEvent struct {
	SessionID string
	Error     string
}

type ConnectionEvent struct {
	Detail string
}
