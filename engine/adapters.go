package engine

import (
	"log"
	"sync"
	"time"

	"steptracker/bridge"
	"steptracker/motion"
)

// busEmitter adapts the engine's EventBus to the bridge.Emitter interface.
type busEmitter struct {
	bus *EventBus
}

func (e *busEmitter) SendEvent(name string, body map[string]interface{}) {
	if name != bridge.EventStepUpdate {
		return
	}
	evt := StepUpdateEvent{Body: body}
	if steps, ok := body["steps"].(int); ok {
		evt.Steps = &steps
	}
	if msg, ok := body["error"].(string); ok {
		evt.Error = msg
	}
	e.bus.Emit(Event{Type: EventStepUpdate, Payload: evt})
}

// sourceMonitor wraps the motion source handed to the bridge and reports
// connection changes of its live subscription on the bus. Events are emitted
// on exec, the bridge's delivery context, so they stay ordered with the step
// updates they precede.
type sourceMonitor struct {
	motion.Service
	name string
	bus  *EventBus
	exec bridge.Executor

	mu        sync.Mutex
	connected bool
}

func (m *sourceMonitor) StartUpdates(from time.Time, handler motion.Handler) {
	m.Service.StartUpdates(from, func(data *motion.Data, err error) {
		m.observe(err)
		handler(data, err)
	})
}

func (m *sourceMonitor) StopUpdates() {
	m.Service.StopUpdates()
	m.mu.Lock()
	m.connected = false
	m.mu.Unlock()
}

func (m *sourceMonitor) observe(err error) {
	m.mu.Lock()
	was := m.connected
	m.connected = err == nil
	m.mu.Unlock()

	var evt Event
	switch {
	case err != nil:
		evt = Event{Type: EventSourceDisconnected, Payload: SourceEvent{Source: m.name, Error: err.Error()}}
	case !was:
		evt = Event{Type: EventSourceConnected, Payload: SourceEvent{Source: m.name}}
	default:
		return
	}
	if !m.exec.Dispatch(func() { m.bus.Emit(evt) }) {
		log.Printf("engine: dropped %s after shutdown", evt.Type)
	}
}
