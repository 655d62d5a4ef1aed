package engine

import (
	"context"
	"time"

	"arogyadash/messaging"
)

func (e *Engine) wireEventHandlers() {
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(SessionFailedEvent)
		e.logFn("engine: session %s failed: %s", ev.SessionID, ev.Error)
	}, EventSessionFailed)

	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(PlanFailedEvent)
		e.logFn("engine: session %s plan failed: %s", ev.SessionID, ev.Error)
	}, EventPlanFailed)

	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(SessionEvent)
		if ev.Reason != "unmount" {
			e.logFn("engine: session %s closed (%s)", ev.SessionID, ev.Reason)
		}
	}, EventSessionClosed)

	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(ConnectionEvent)
		switch evt.Type {
		case EventBackendConnected:
			e.logFn("engine: backend connected: %s", ev.Detail)
		case EventBackendDisconnected:
			e.logFn("engine: backend disconnected: %s", ev.Detail)
		}
	}, EventBackendConnected, EventBackendDisconnected)

	// High and critical plans go out as advisories. Publishing happens off
	// the session's notify path.
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(PlanReadyEvent)
		if !messaging.ShouldAdvise(ev.Plan) {
			return
		}
		e.pubWg.Add(1)
		go func() {
			defer e.pubWg.Done()
			e.publishAdvisory(ev)
		}()
	}, EventPlanReady)
}

func (e *Engine) publishAdvisory(ev PlanReadyEvent) {
	e.cfg.RLock()
	enabled := e.cfg.Messaging.Enabled
	topic := e.cfg.Messaging.AdvisoryTopic
	station := e.cfg.Messaging.StationID
	e.cfg.RUnlock()

	if !enabled || e.msgClient == nil {
		return
	}
	if !e.msgClient.IsConnected() {
		e.countAdvisory("skipped")
		e.logFn("engine: advisory for session %s skipped: messaging not connected", ev.SessionID)
		return
	}

	env, err := messaging.NewEnvelope(messaging.TypeSurgeAdvisory, station, messaging.NewAdvisory(ev.SessionID, ev.Plan))
	if err != nil {
		e.countAdvisory("error")
		e.logFn("engine: build advisory: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.msgClient.PublishEnvelope(ctx, topic, env); err != nil {
		e.countAdvisory("error")
		e.logFn("engine: publish advisory %s to %s: %v", env.ID, topic, err)
		return
	}
	e.countAdvisory("published")
	e.logFn("engine: advisory %s published to %s (alert level %s)", env.ID, topic, ev.Plan.MonitorReport.AlertLevel)
}

func (e *Engine) countAdvisory(status string) {
	if e.metrics != nil {
		e.metrics.IncAdvisories(status)
	}
}
