package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"steptracker/bridge"
	"steptracker/config"
	"steptracker/motion"
	"steptracker/motion/recorded"
	"steptracker/redisstore"
	"steptracker/store"
)

// LogFunc is the logging callback signature.
type LogFunc func(format string, args ...interface{})

// SampleStore is where wearable sample history lives. Both the SQL store and
// the redis store implement it.
type SampleStore interface {
	recorded.SampleSource
	AppendSamples(ctx context.Context, samples []motion.Sample) error
	DeleteStepSamples(ctx context.Context) (int64, error)
}

// Engine owns the motion source and its bridge, and publishes what the
// bridge emits on an EventBus.
type Engine struct {
	cfg     *config.Config
	db      *store.DB
	rdb     *redisstore.Store
	logFn   LogFunc
	debugFn LogFunc
	debug   bool

	svc    motion.Service
	source string
	queue  *bridge.Queue
	bridge *bridge.Bridge

	Events   *EventBus
	stopOnce sync.Once
}

// Config holds the parameters needed to create an Engine.
type Config struct {
	AppConfig *config.Config
	DB        *store.DB
	Redis     *redisstore.Store // nil when redis is not configured

	// Service replaces the configured motion source when set.
	Service motion.Service

	LogFunc LogFunc
	Debug   bool
}

// New creates a new Engine. Call Start() to build the motion source and
// bridge.
func New(c Config) *Engine {
	logFn := c.LogFunc
	if logFn == nil {
		logFn = func(string, ...interface{}) {}
	}
	debugFn := LogFunc(func(string, ...interface{}) {})
	if c.Debug {
		debugFn = logFn
	}
	return &Engine{
		cfg:     c.AppConfig,
		db:      c.DB,
		rdb:     c.Redis,
		svc:     c.Service,
		logFn:   logFn,
		debugFn: debugFn,
		debug:   c.Debug,
		Events:  NewEventBus(),
	}
}

// Start creates the motion source and the bridge, and wires event handlers.
func (e *Engine) Start() error {
	if e.svc == nil {
		svc, err := e.newService()
		if err != nil {
			return err
		}
		e.svc = svc
		e.source = e.cfg.Motion.Source
	} else {
		e.source = "custom"
	}

	e.queue = bridge.NewQueue()
	monitor := &sourceMonitor{Service: e.svc, name: e.source, bus: e.Events, exec: e.queue}
	b, err := bridge.New(bridge.Config{
		Service:           monitor,
		Executor:          e.queue,
		Emitter:           &busEmitter{bus: e.Events},
		OnTrackingChanged: e.trackingChanged,
		LogFunc:           bridge.LogFunc(e.logFn),
		Debug:             e.debug,
	})
	if err != nil {
		e.queue.Stop()
		return fmt.Errorf("create bridge: %w", err)
	}
	e.bridge = b

	e.wireEventHandlers()

	e.logFn("Engine started: instance=%s source=%s", e.cfg.InstanceName, e.source)
	return nil
}

// Stop closes the bridge, which ends live tracking if it is on.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		if e.bridge != nil {
			e.bridge.Close()
		}
		if e.queue != nil {
			e.queue.Stop()
		}
		e.logFn("Engine stopped")
	})
}

// Bridge returns the step-counting bridge.
func (e *Engine) Bridge() *bridge.Bridge { return e.bridge }

// Source returns the name of the active motion source.
func (e *Engine) Source() string { return e.source }

// Tracking reports whether live tracking is on.
func (e *Engine) Tracking() bool {
	if e.bridge == nil {
		return false
	}
	return e.bridge.IsTracking()
}

// Available asks the motion source directly, outside the bridge.
func (e *Engine) Available() bool {
	if e.svc == nil {
		return false
	}
	return e.svc.IsStepCountingAvailable()
}

// DB returns the database handle.
func (e *Engine) DB() *store.DB { return e.db }

// AppConfig returns the app config.
func (e *Engine) AppConfig() *config.Config { return e.cfg }

// Samples returns the sample store recorded sources read from, or nil when
// none is configured.
func (e *Engine) Samples() SampleStore {
	if e.cfg.Motion.Recorded.Backend == "redis" {
		if e.rdb == nil {
			return nil
		}
		return e.rdb
	}
	if e.db == nil {
		return nil
	}
	return e.db
}

func (e *Engine) trackingChanged(tracking bool) {
	evt := Event{Type: EventTrackingStopped, Timestamp: time.Now(), Payload: TrackingEvent{Tracking: tracking, Source: e.source}}
	if tracking {
		evt.Type = EventTrackingStarted
	}
	e.Events.Emit(evt)
}
