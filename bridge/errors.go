package bridge

import (
	"errors"
	"fmt"
)

// Message used when rejecting a start on hardware without step counting.
const msgNotAvailable = "Step counting is not available"

var (
	// ErrNotAvailable is the cause attached to NOT_AVAILABLE rejections.
	ErrNotAvailable = errors.New("Step counting is not available on this device")

	// ErrServiceClaimed is returned by New when another bridge already owns
	// the motion service.
	ErrServiceClaimed = errors.New("motion service already has a bridge")

	// ErrClosed is the cause attached to calls made after Close.
	ErrClosed = errors.New("bridge closed")
)

// Error is a rejected call as seen by a transport.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }
