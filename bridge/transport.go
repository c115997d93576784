package bridge

// EventStepUpdate is the only event the bridge emits.
const EventStepUpdate = "onStepUpdate"

// Rejection codes.
const (
	CodeStepCountError = "STEP_COUNT_ERROR"
	CodeNotAvailable   = "NOT_AVAILABLE"
	CodeBridgeClosed   = "BRIDGE_CLOSED"
)

// Promise is a pending call from the application. Exactly one of Resolve or
// Reject is called, once. Implementations must be safe to complete from any
// goroutine.
type Promise interface {
	Resolve(value interface{})
	Reject(code, message string, err error)
}

// Emitter delivers named events to every listener of the application.
// The bridge only calls it from its delivery context.
type Emitter interface {
	SendEvent(name string, body map[string]interface{})
}

// Executor is a serial delivery context. Dispatch schedules fn and reports
// false if the context no longer accepts work.
type Executor interface {
	Dispatch(fn func()) bool
}

// SupportedEvents lists the event names the bridge may emit.
func SupportedEvents() []string {
	return []string{EventStepUpdate}
}
