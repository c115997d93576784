// Package bridge adapts a motion.Service to an application's promise/event
// transport.
//
// The bridge owns one piece of state, whether live tracking is on. That flag
// is only read or written on the bridge's delivery context, and every event is
// emitted from it, so listeners see a single serial stream.
package bridge

import (
	"fmt"
	"reflect"
	"sync"
	"time"

	"steptracker/motion"
)

// LogFunc is the logging callback signature.
type LogFunc func(format string, args ...interface{})

var (
	claimsMu sync.Mutex
	claims   = make(map[motion.Service]struct{})
)

// Config holds the parameters needed to create a Bridge.
type Config struct {
	Service motion.Service
	Emitter Emitter

	// Executor is the delivery context. A private Queue is started when nil.
	Executor Executor

	// OnTrackingChanged, if set, is called on the delivery context after
	// every change of the tracking flag.
	OnTrackingChanged func(tracking bool)

	LogFunc LogFunc
	Debug   bool

	// Now overrides the clock; used by tests.
	Now func() time.Time
}

// Bridge is the application-facing step counter.
type Bridge struct {
	svc       motion.Service
	emitter   Emitter
	exec      Executor
	queue     *Queue // non-nil when the bridge owns its executor
	onChange  func(bool)
	logFn     LogFunc
	debugFn   LogFunc
	now       func() time.Time
	closeOnce sync.Once

	// Owned by the delivery context.
	isTracking bool
	generation uint64
}

// New creates a Bridge bound to c.Service. Only one bridge may own a given
// service at a time; Close releases it.
func New(c Config) (*Bridge, error) {
	if c.Service == nil {
		return nil, fmt.Errorf("bridge: nil motion service")
	}
	if c.Emitter == nil {
		return nil, fmt.Errorf("bridge: nil emitter")
	}
	if !reflect.TypeOf(c.Service).Comparable() {
		return nil, fmt.Errorf("bridge: motion service type %T is not comparable", c.Service)
	}

	claimsMu.Lock()
	if _, taken := claims[c.Service]; taken {
		claimsMu.Unlock()
		return nil, ErrServiceClaimed
	}
	claims[c.Service] = struct{}{}
	claimsMu.Unlock()

	logFn := c.LogFunc
	if logFn == nil {
		logFn = func(string, ...interface{}) {}
	}
	debugFn := LogFunc(func(string, ...interface{}) {})
	if c.Debug {
		debugFn = logFn
	}
	now := c.Now
	if now == nil {
		now = time.Now
	}

	b := &Bridge{
		svc:      c.Service,
		emitter:  c.Emitter,
		exec:     c.Executor,
		onChange: c.OnTrackingChanged,
		logFn:    logFn,
		debugFn:  debugFn,
		now:      now,
	}
	if b.exec == nil {
		b.queue = NewQueue()
		b.exec = b.queue
	}
	return b, nil
}

// IsAvailable resolves with the service's current availability. It never
// rejects while the bridge is open.
func (b *Bridge) IsAvailable(p Promise) {
	b.dispatch(p, func() {
		available := b.svc.IsStepCountingAvailable()
		b.logFn("bridge: isAvailable called, result: %t", available)
		p.Resolve(available)
	})
}

// GetStepCount resolves with the number of steps recorded between the two
// instants, given in milliseconds since the Unix epoch. The range is passed
// through unchecked; service failures reject with STEP_COUNT_ERROR.
func (b *Bridge) GetStepCount(startMillis, endMillis float64, p Promise) {
	start := millisToTime(startMillis)
	end := millisToTime(endMillis)
	b.dispatch(p, func() {
		b.logFn("bridge: getStepCount called: %s to %s", start.Format(time.RFC3339Nano), end.Format(time.RFC3339Nano))

		// The result is settled from the service's callback, off the queue.
		b.svc.QueryPedometerData(start, end, func(data *motion.Data, err error) {
			if err != nil {
				b.logFn("bridge: error querying steps: %v", err)
				p.Reject(CodeStepCountError, err.Error(), err)
				return
			}
			steps := stepsOf(data)
			b.logFn("bridge: steps queried: %d", steps)
			p.Resolve(steps)
		})
	})
}

// StartStepTracking subscribes to live updates and resolves as soon as the
// subscription is registered. A call while already tracking is a no-op.
func (b *Bridge) StartStepTracking(p Promise) {
	b.dispatch(p, func() { b.startTracking(p) })
}

// StopStepTracking cancels live updates. A call while idle is a no-op.
func (b *Bridge) StopStepTracking(p Promise) {
	b.dispatch(p, func() { b.stopTracking(p) })
}

// IsTracking reports the tracking flag as seen by the delivery context.
func (b *Bridge) IsTracking() bool {
	ch := make(chan bool, 1)
	if !b.exec.Dispatch(func() { ch <- b.isTracking }) {
		return false
	}
	return <-ch
}

// Close stops live updates if needed, releases the motion service and shuts
// down the bridge's own delivery queue.
func (b *Bridge) Close() {
	b.closeOnce.Do(func() {
		done := make(chan struct{})
		if b.exec.Dispatch(func() {
			defer close(done)
			if b.isTracking {
				b.svc.StopUpdates()
				b.generation++
				b.setTracking(false)
			}
		}) {
			<-done
		}
		if b.queue != nil {
			b.queue.Stop()
		}

		claimsMu.Lock()
		delete(claims, b.svc)
		claimsMu.Unlock()
	})
}

func (b *Bridge) dispatch(p Promise, fn func()) {
	if !b.exec.Dispatch(fn) {
		p.Reject(CodeBridgeClosed, ErrClosed.Error(), ErrClosed)
	}
}

func (b *Bridge) startTracking(p Promise) {
	if b.isTracking {
		b.logFn("bridge: already tracking, skipping")
		p.Resolve(nil)
		return
	}

	b.logFn("bridge: starting step tracking")

	if !b.svc.IsStepCountingAvailable() {
		b.logFn("bridge: step counting not available")
		p.Reject(CodeNotAvailable, msgNotAvailable, ErrNotAvailable)
		return
	}

	startDate := b.now()
	b.generation++
	gen := b.generation
	b.setTracking(true)

	b.svc.StartUpdates(startDate, func(data *motion.Data, err error) {
		b.exec.Dispatch(func() { b.handleUpdate(gen, data, err) })
	})

	// Priming read so the caller gets a value before the first live delta.
	b.svc.QueryPedometerData(startDate, b.now(), func(data *motion.Data, err error) {
		b.exec.Dispatch(func() { b.handlePriming(gen, data, err) })
	})

	b.logFn("bridge: step tracking started")
	p.Resolve(nil)
}

func (b *Bridge) stopTracking(p Promise) {
	if !b.isTracking {
		b.logFn("bridge: not tracking, skipping")
		p.Resolve(nil)
		return
	}

	b.logFn("bridge: stopping step tracking")
	b.svc.StopUpdates()
	b.generation++
	b.setTracking(false)
	b.logFn("bridge: step tracking stopped")
	p.Resolve(nil)
}

func (b *Bridge) handleUpdate(gen uint64, data *motion.Data, err error) {
	if gen != b.generation {
		b.debugFn("bridge: dropping update from stale subscription %d", gen)
		return
	}
	if err != nil {
		b.logFn("bridge: error in live updates: %v", err)
		b.emit(map[string]interface{}{"error": err.Error()})
		b.setTracking(false)
		return
	}
	if data == nil {
		b.logFn("bridge: live update carried no data")
		return
	}
	b.logFn("bridge: step update: %d steps", data.NumberOfSteps)
	b.emit(map[string]interface{}{"steps": data.NumberOfSteps})
}

func (b *Bridge) handlePriming(gen uint64, data *motion.Data, err error) {
	if gen != b.generation {
		b.debugFn("bridge: dropping priming read from stale subscription %d", gen)
		return
	}
	if err != nil {
		b.logFn("bridge: error querying initial steps: %v", err)
		return
	}
	steps := stepsOf(data)
	b.logFn("bridge: initial step count: %d", steps)
	b.emit(map[string]interface{}{"steps": steps})
}

func (b *Bridge) emit(body map[string]interface{}) {
	b.emitter.SendEvent(EventStepUpdate, body)
}

func (b *Bridge) setTracking(tracking bool) {
	if b.isTracking == tracking {
		return
	}
	b.isTracking = tracking
	if b.onChange != nil {
		b.onChange(tracking)
	}
}

func stepsOf(data *motion.Data) int {
	if data == nil {
		return 0
	}
	return data.NumberOfSteps
}

// millisToTime keeps sub-millisecond precision of JavaScript-style numbers.
func millisToTime(ms float64) time.Time {
	sec := int64(ms / 1000)
	nsec := int64((ms - float64(sec)*1000) * float64(time.Millisecond))
	return time.Unix(sec, nsec)
}
