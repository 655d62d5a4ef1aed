package engine

import (
	"log"
	"sync"
	"time"
)

type EventType int

type SubscriberID int

type Event struct {
	Type      EventType
	Timestamp time.Time
	Payload   any
}

type handler struct {
	id    SubscriberID
	fn    func(Event)
	wants func(EventType) bool
}

// EventBus delivers engine events synchronously on the emitting goroutine,
// in subscription order. A panicking handler is logged and skipped.
type EventBus struct {
	mu       sync.RWMutex
	handlers []handler
	lastID   SubscriberID
}

func NewEventBus() *EventBus {
	return &EventBus{}
}

// Subscribe registers fn for every event.
func (eb *EventBus) Subscribe(fn func(Event)) SubscriberID {
	return eb.register(fn, func(EventType) bool { return true })
}

// SubscribeTypes registers fn for the listed event types.
func (eb *EventBus) SubscribeTypes(fn func(Event), types ...EventType) SubscriberID {
	set := make(map[EventType]bool, len(types))
	for _, t := range types {
		set[t] = true
	}
	return eb.register(fn, func(t EventType) bool { return set[t] })
}

func (eb *EventBus) register(fn func(Event), wants func(EventType) bool) SubscriberID {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.lastID++
	eb.handlers = append(eb.handlers, handler{id: eb.lastID, fn: fn, wants: wants})
	return eb.lastID
}

func (eb *EventBus) Unsubscribe(id SubscriberID) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	kept := eb.handlers[:0:0]
	for _, h := range eb.handlers {
		if h.id != id {
			kept = append(kept, h)
		}
	}
	eb.handlers = kept
}

// Emit stamps evt if needed and hands it to every interested handler.
func (eb *EventBus) Emit(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	eb.mu.RLock()
	hs := eb.handlers
	eb.mu.RUnlock()

	for _, h := range hs {
		if h.wants(evt.Type) {
			deliver(h, evt)
		}
	}
}

func deliver(h handler, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("eventbus: handler %d panicked on event %d: %v", h.id, evt.Type, r)
		}
	}()
	h.fn(evt)
}
