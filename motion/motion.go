// Package motion defines the pedometer contract the bridge consumes and the
// data it reports. Backends live in the sim, recorded and remote subpackages.
package motion

import "time"

// Data is a single pedometer reading over [StartDate, EndDate].
type Data struct {
	StartDate     time.Time
	EndDate       time.Time
	NumberOfSteps int
	Distance      *float64 // metres, nil when the source does not report it
}

// Handler receives the result of a query or a live update. Exactly one of
// data and err is meaningful; a live update may carry neither.
type Handler func(data *Data, err error)

// Service is a step-counting capability.
//
// Handlers may be invoked on any goroutine, at any time after the call that
// registered them. Live updates report the cumulative count since the from
// instant passed to StartUpdates.
type Service interface {
	IsStepCountingAvailable() bool
	QueryPedometerData(from, to time.Time, handler Handler)
	StartUpdates(from time.Time, handler Handler)
	StopUpdates()
}

// Error codes reported by backends.
const (
	CodeUnavailable   = "unavailable"
	CodeNotAuthorized = "not_authorized"
	CodeInvalidRange  = "invalid_range"
	CodeSourceOffline = "source_offline"
)

// Error is a pedometer failure. Its message is what callers see.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// NewError returns an *Error with the given code and message.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// ErrInvalidRange is returned by backends that reject to < from.
var ErrInvalidRange = NewError(CodeInvalidRange, "The end date precedes the start date")

// Sample is a step count a wearable observed over a short window ending at
// RecordedAt. Recorded backends sum samples to answer queries.
type Sample struct {
	RecordedAt time.Time `json:"recorded_at"`
	Steps      int       `json:"steps"`
}
