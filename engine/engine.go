package engine

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"arogyadash/agent"
	"arogyadash/backend"
	"arogyadash/config"
	"arogyadash/messaging"
	"arogyadash/metrics"
	"arogyadash/store"
)

type LogFunc func(format string, args ...any)

// Publisher is the slice of messaging.Client the engine uses.
type Publisher interface {
	PublishEnvelope(ctx context.Context, topic string, env *messaging.Envelope) error
	IsConnected() bool
}

type Config struct {
	AppConfig  *config.Config
	ConfigPath string
	DB         *store.DB
	Backend    *backend.Client
	Plans      agent.PlanSource // overrides agent.source when set
	MsgClient  Publisher        // nil when messaging is disabled
	Metrics    *metrics.Collector
	LogFunc    LogFunc
}

type Engine struct {
	cfg        *config.Config
	configPath string
	db         *store.DB
	backend    *backend.Client
	plans      agent.PlanSource
	msgClient  Publisher
	metrics    *metrics.Collector
	Events     *EventBus
	logFn      LogFunc

	baseCtx    context.Context
	cancelBase context.CancelFunc
	stopChan   chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup // background loops
	pubWg      sync.WaitGroup // advisory publishes

	mu       sync.Mutex
	sessions map[string]*sessionEntry

	connMu           sync.Mutex
	backendConnected bool
	msgConnected     bool
}

func New(c Config) *Engine {
	logFn := c.LogFunc
	if logFn == nil {
		logFn = log.Printf
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		cfg:        c.AppConfig,
		configPath: c.ConfigPath,
		db:         c.DB,
		backend:    c.Backend,
		plans:      c.Plans,
		msgClient:  c.MsgClient,
		metrics:    c.Metrics,
		Events:     NewEventBus(),
		logFn:      logFn,
		baseCtx:    ctx,
		cancelBase: cancel,
		stopChan:   make(chan struct{}),
		sessions:   make(map[string]*sessionEntry),
	}
}

func (e *Engine) Start() {
	if e.metrics != nil {
		e.backend.SetObserver(e.metrics.ObserveBackend)
	}

	e.wireEventHandlers()

	// Emit initial connection status
	e.checkConnectionStatus()

	e.wg.Add(2)
	go e.connectionHealthLoop()
	go e.reapLoop()

	e.logFn("engine: started (backend %s, agent source %s)", e.backend.BaseURL(), e.agentSourceName())
}

// Stop halts the background loops and unmounts every open session.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		close(e.stopChan)
		e.wg.Wait()
		for _, id := range e.SessionIDs() {
			e.closeSession(id, "shutdown")
		}
		e.pubWg.Wait()
		e.cancelBase()
		e.logFn("engine: stopped")
	})
}

// Accessors
func (e *Engine) DB() *store.DB               { return e.db }
func (e *Engine) AppConfig() *config.Config   { return e.cfg }
func (e *Engine) ConfigPath() string          { return e.configPath }
func (e *Engine) Backend() *backend.Client    { return e.backend }
func (e *Engine) Metrics() *metrics.Collector { return e.metrics }

// BackendConnected reports the result of the latest health check.
func (e *Engine) BackendConnected() bool {
	e.connMu.Lock()
	defer e.connMu.Unlock()
	return e.backendConnected
}

func (e *Engine) MessagingConnected() bool {
	e.connMu.Lock()
	defer e.connMu.Unlock()
	return e.msgConnected
}

func (e *Engine) agentSourceName() string {
	if e.plans != nil {
		return "injected"
	}
	e.cfg.RLock()
	defer e.cfg.RUnlock()
	return e.cfg.Agent.Source
}

// planSource picks the plan source for a new session from current config.
func (e *Engine) planSource() agent.PlanSource {
	if e.plans != nil {
		return e.plans
	}
	e.cfg.RLock()
	defer e.cfg.RUnlock()
	if e.cfg.Agent.Source == "proxy" {
		return &agent.ProxySource{Client: e.backend, Path: e.cfg.Agent.ProxyPath}
	}
	return agent.NewMockSource(e.cfg.Agent.Delay)
}

func (e *Engine) checkConnectionStatus() {
	ctx, cancel := context.WithTimeout(e.baseCtx, e.backend.Timeout())
	err := e.backend.Ping(ctx)
	cancel()

	e.connMu.Lock()
	var events []Event
	if err == nil {
		if !e.backendConnected {
			e.backendConnected = true
			events = append(events, Event{Type: EventBackendConnected, Payload: ConnectionEvent{Detail: "backend reachable at " + e.backend.BaseURL()}})
		}
	} else if e.backendConnected {
		e.backendConnected = false
		events = append(events, Event{Type: EventBackendDisconnected, Payload: ConnectionEvent{Detail: err.Error()}})
	}

	if e.msgClient != nil {
		if e.msgClient.IsConnected() {
			if !e.msgConnected {
				e.msgConnected = true
				events = append(events, Event{Type: EventMessagingConnected, Payload: ConnectionEvent{Detail: "messaging connected"}})
			}
		} else if e.msgConnected {
			e.msgConnected = false
			events = append(events, Event{Type: EventMessagingDisconnected, Payload: ConnectionEvent{Detail: "messaging disconnected"}})
		}
	}
	connected := e.backendConnected
	e.connMu.Unlock()

	if e.metrics != nil {
		e.metrics.SetBackendConnected(connected)
	}
	for _, evt := range events {
		e.Events.Emit(evt)
	}
}

func (e *Engine) connectionHealthLoop() {
	defer e.wg.Done()
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-e.stopChan:
			return
		case <-ticker.C:
			e.checkConnectionStatus()
		}
	}
}

// ReconfigureBackend applies backend config changes live. Sessions already
// mounted keep the requests they started with.
func (e *Engine) ReconfigureBackend() {
	e.cfg.RLock()
	baseURL := e.cfg.Backend.BaseURL
	e.cfg.RUnlock()

	e.backend.Reconfigure(baseURL)
	e.logFn("engine: backend reconfigured (%s)", baseURL)
	e.checkConnectionStatus()
}

// ApplyConfig copies the hot-reloadable sections of next into the live
// config, records what changed and reconfigures the backend and, when its
// broker settings moved, the messaging client. messaging.enabled itself only
// takes effect on restart.
func (e *Engine) ApplyConfig(next *config.Config, actor string) {
	e.cfg.Lock()
	changes := diffReloadable(e.cfg, next)
	brokerMoved := brokerChanged(&e.cfg.Messaging, &next.Messaging)
	e.cfg.Backend = next.Backend
	e.cfg.Agent = next.Agent
	enabled := e.cfg.Messaging.Enabled
	if next.Messaging.Enabled != enabled {
		e.logFn("engine: messaging.enabled=%v ignored until restart", next.Messaging.Enabled)
	}
	e.cfg.Messaging = next.Messaging
	e.cfg.Messaging.Enabled = enabled
	e.cfg.Messaging.Kafka.Brokers = append([]string(nil), next.Messaging.Kafka.Brokers...)
	msgCfg := e.cfg.Messaging
	e.cfg.Unlock()

	if len(changes) == 0 {
		return
	}
	e.recordChanges(changes, actor)
	e.ReconfigureBackend()
	if brokerMoved {
		e.reconfigureMessaging(&msgCfg)
	}
	e.Events.Emit(Event{Type: EventConfigReloaded, Payload: ConnectionEvent{Detail: actor}})
}

// messagingReconfigurer is implemented by publishers that can switch brokers
// without a restart.
type messagingReconfigurer interface {
	Reconfigure(cfg *config.MessagingConfig) error
}

func (e *Engine) reconfigureMessaging(cfg *config.MessagingConfig) {
	r, ok := e.msgClient.(messagingReconfigurer)
	if !ok {
		return
	}
	if err := r.Reconfigure(cfg); err != nil {
		e.logFn("engine: messaging reconfigure: %v", err)
	} else {
		e.logFn("engine: messaging reconfigured (%s)", cfg.Backend)
	}
	e.checkConnectionStatus()
}

// ConfigChange is one edited config key.
type ConfigChange struct {
	Key, Old, New string
}

func (e *Engine) recordChanges(changes []ConfigChange, actor string) {
	for _, c := range changes {
		e.logFn("engine: config %s changed %q -> %q (%s)", c.Key, c.Old, c.New, actor)
		if e.db == nil {
			continue
		}
		if err := e.db.AppendConfigAudit(c.Key, c.Old, c.New, actor); err != nil {
			e.logFn("engine: config audit: %v", err)
		}
	}
}

func diffReloadable(cur, next *config.Config) []ConfigChange {
	var out []ConfigChange
	add := func(key, a, b string) {
		if a != b {
			out = append(out, ConfigChange{Key: key, Old: a, New: b})
		}
	}
	add("backend.base_url", cur.Backend.BaseURL, next.Backend.BaseURL)
	add("backend.cache_ttl", cur.Backend.CacheTTL.String(), next.Backend.CacheTTL.String())
	add("agent.source", cur.Agent.Source, next.Agent.Source)
	add("agent.delay", cur.Agent.Delay.String(), next.Agent.Delay.String())
	add("agent.proxy_path", cur.Agent.ProxyPath, next.Agent.ProxyPath)
	add("messaging.backend", cur.Messaging.Backend, next.Messaging.Backend)
	add("messaging.kafka.brokers", strings.Join(cur.Messaging.Kafka.Brokers, ","), strings.Join(next.Messaging.Kafka.Brokers, ","))
	add("messaging.mqtt.broker", fmt.Sprintf("%s:%d", cur.Messaging.MQTT.Broker, cur.Messaging.MQTT.Port),
		fmt.Sprintf("%s:%d", next.Messaging.MQTT.Broker, next.Messaging.MQTT.Port))
	add("messaging.advisory_topic", cur.Messaging.AdvisoryTopic, next.Messaging.AdvisoryTopic)
	add("messaging.station_id", cur.Messaging.StationID, next.Messaging.StationID)
	return out
}

func brokerChanged(cur, next *config.MessagingConfig) bool {
	return cur.Backend != next.Backend ||
		strings.Join(cur.Kafka.Brokers, ",") != strings.Join(next.Kafka.Brokers, ",") ||
		cur.MQTT != next.MQTT
}
