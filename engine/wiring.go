package engine

import (
	"fmt"

	"steptracker/motion"
	"steptracker/motion/recorded"
	"steptracker/motion/remote"
	"steptracker/motion/sim"
)

// newService builds the motion source named by motion.source.
func (e *Engine) newService() (motion.Service, error) {
	mc := e.cfg.Motion
	switch mc.Source {
	case "", "sim":
		return sim.New(mc.Sim), nil
	case "recorded":
		src := e.Samples()
		if src == nil {
			return nil, fmt.Errorf("recorded source: no %q sample store configured", mc.Recorded.Backend)
		}
		return recorded.New(src, mc.Recorded.PollRate), nil
	case "remote":
		if mc.Remote.Host == "" || mc.Remote.Port == 0 {
			return nil, fmt.Errorf("remote source: gateway host and port are required")
		}
		return remote.New(mc.Remote), nil
	default:
		return nil, fmt.Errorf("unknown motion source %q", mc.Source)
	}
}

// wireEventHandlers logs tracking and source transitions.
func (e *Engine) wireEventHandlers() {
	e.Events.SubscribeTypes(func(evt Event) {
		t := evt.Payload.(TrackingEvent)
		e.logFn("tracking %s (source=%s)", onOff(t.Tracking), t.Source)
	}, EventTrackingStarted, EventTrackingStopped)

	e.Events.SubscribeTypes(func(evt Event) {
		s := evt.Payload.(SourceEvent)
		if evt.Type == EventSourceConnected {
			e.logFn("motion source %s delivering updates", s.Source)
			return
		}
		e.logFn("motion source %s failed: %s", s.Source, s.Error)
	}, EventSourceConnected, EventSourceDisconnected)

	e.Events.SubscribeTypes(func(evt Event) {
		u := evt.Payload.(StepUpdateEvent)
		e.debugFn("step update: %v", u.Body)
	}, EventStepUpdate)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
