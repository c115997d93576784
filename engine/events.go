package engine

import "time"

// EventType identifies the kind of event emitted by the Engine.
type EventType int

const (
	// Bridge events
	EventStepUpdate EventType = iota + 1
	EventTrackingStarted
	EventTrackingStopped

	// Motion source events
	EventSourceConnected
	EventSourceDisconnected
)

var eventTypeNames = map[EventType]string{
	EventStepUpdate:         "step-update",
	EventTrackingStarted:    "tracking-started",
	EventTrackingStopped:    "tracking-stopped",
	EventSourceConnected:    "source-connected",
	EventSourceDisconnected: "source-disconnected",
}

func (t EventType) String() string {
	if name, ok := eventTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// Event is the envelope emitted by the Engine's EventBus.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Payload   interface{}
}

// StepUpdateEvent carries one onStepUpdate emission. Body is the exact map
// the bridge emitted; Steps and Error are decoded from it.
type StepUpdateEvent struct {
	Body  map[string]interface{}
	Steps *int
	Error string
}

// TrackingEvent is emitted when live tracking starts or stops.
type TrackingEvent struct {
	Tracking bool   `json:"tracking"`
	Source   string `json:"source"`
}

// SourceEvent is emitted when the motion source starts delivering or
// reports a failure.
type SourceEvent struct {
	Source string `json:"source"`
	Error  string `json:"error,omitempty"`
}
