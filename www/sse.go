package www

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"arogyadash/dashboard"
	"arogyadash/engine"
)

type SSEEvent struct {
	Session string // empty for every client
	Event   string
	Data    string
}

// EventHub fans events out to SSE clients. Each client is bound to one
// dashboard session and also receives untargeted events.
type EventHub struct {
	mu        sync.RWMutex
	clients   map[chan SSEEvent]string
	broadcast chan SSEEvent
	stopChan  chan struct{}
	stopOnce  sync.Once
}

func NewEventHub() *EventHub {
	return &EventHub{
		clients:   make(map[chan SSEEvent]string),
		broadcast: make(chan SSEEvent, 256),
		stopChan:  make(chan struct{}),
	}
}

func (h *EventHub) Start() {
	go h.run()
}

func (h *EventHub) Stop() {
	h.stopOnce.Do(func() { close(h.stopChan) })
}

func (h *EventHub) run() {
	keepalive := time.NewTicker(30 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case <-h.stopChan:
			return
		case evt := <-h.broadcast:
			h.mu.RLock()
			for ch, session := range h.clients {
				if evt.Session != "" && evt.Session != session {
					continue
				}
				select {
				case ch <- evt:
				default:
					// drop if full
				}
			}
			h.mu.RUnlock()
		case <-keepalive.C:
			h.mu.RLock()
			for ch := range h.clients {
				select {
				case ch <- SSEEvent{Event: "keepalive", Data: "ping"}:
				default:
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast queues an event for every client.
func (h *EventHub) Broadcast(event, data string) {
	h.Send("", event, data)
}

// Send queues an event for the clients of one session.
func (h *EventHub) Send(session, event, data string) {
	select {
	case h.broadcast <- SSEEvent{Session: session, Event: event, Data: data}:
	default:
	}
}

func (h *EventHub) AddClient(session string) chan SSEEvent {
	ch := make(chan SSEEvent, 64)
	h.mu.Lock()
	h.clients[ch] = session
	h.mu.Unlock()
	return ch
}

func (h *EventHub) RemoveClient(ch chan SSEEvent) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
	close(ch)
}

func (h *EventHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func mustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("sse: marshal %T: %v", v, err)
		return "{}"
	}
	return string(data)
}

type statePayload struct {
	Phase   string `json:"phase"`
	Loading bool   `json:"loading"`
	Error   string `json:"error,omitempty"`
}

func stateEvent(st dashboard.State) string {
	return mustJSON(statePayload{Phase: st.Phase().String(), Loading: st.Loading(), Error: st.ErrorMessage()})
}

// planEvent renders the agent card for a settled plan slot.
func planEvent(st dashboard.State) (string, string) {
	card := dashboard.BuildAgentCard(st)
	if card.Error != "" {
		return "plan-failed", mustJSON(map[string]string{"error": card.Error})
	}
	return "plan-ready", mustJSON(card)
}

// SetupEngineListeners wires engine events to SSE events.
func (h *EventHub) SetupEngineListeners(eng *engine.Engine) {
	eng.Events.SubscribeTypes(func(evt engine.Event) {
		ev := evt.Payload.(engine.SessionChangedEvent)
		h.Send(ev.SessionID, "state", stateEvent(ev.State))
	}, engine.EventSessionChanged)

	eng.Events.SubscribeTypes(func(evt engine.Event) {
		ev := evt.Payload.(engine.PlanReadyEvent)
		st := dashboard.State{}.Apply(dashboard.Action{Kind: dashboard.PlanLoaded, Plan: ev.Plan})
		name, data := planEvent(st)
		h.Send(ev.SessionID, name, data)
	}, engine.EventPlanReady)

	eng.Events.SubscribeTypes(func(evt engine.Event) {
		ev := evt.Payload.(engine.PlanFailedEvent)
		h.Send(ev.SessionID, "plan-failed", mustJSON(map[string]string{"error": ev.Error}))
	}, engine.EventPlanFailed)

	eng.Events.SubscribeTypes(func(evt engine.Event) {
		h.Broadcast("system-status", `{"backend":"connected"}`)
	}, engine.EventBackendConnected)

	eng.Events.SubscribeTypes(func(evt engine.Event) {
		h.Broadcast("system-status", `{"backend":"disconnected"}`)
	}, engine.EventBackendDisconnected)

	eng.Events.SubscribeTypes(func(evt engine.Event) {
		h.Broadcast("system-status", `{"messaging":"connected"}`)
	}, engine.EventMessagingConnected)

	eng.Events.SubscribeTypes(func(evt engine.Event) {
		h.Broadcast("system-status", `{"messaging":"disconnected"}`)
	}, engine.EventMessagingDisconnected)
}

// handleEvents streams one session's events. The session stays mounted for
// as long as the stream is open and is unmounted when the client goes away.
func (h *Handlers) handleEvents(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("session")
	s, ok := h.engine.Session(id)
	if !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := h.eventHub.AddClient(id)
	s.Attach()
	defer func() {
		h.eventHub.RemoveClient(ch)
		s.Detach()
		h.engine.CloseSession(id)
	}()

	// Catch up on anything committed before the stream opened.
	st := s.Snapshot()
	write := func(event, data string) bool {
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
			log.Printf("sse: write error: %v", err)
			return false
		}
		flusher.Flush()
		return true
	}
	if !write("state", stateEvent(st)) {
		return
	}
	if !st.PlanLoading() {
		if !write(planEvent(st)) {
			return
		}
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case evt := <-ch:
			if !write(evt.Event, evt.Data) {
				return
			}
		}
	}
}
