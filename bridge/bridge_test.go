package bridge

import (
	"errors"
	"sync"
	"testing"
	"time"

	"steptracker/motion"
)

// --- Fakes ---

type inlineExecutor struct{}

func (inlineExecutor) Dispatch(fn func()) bool {
	fn()
	return true
}

type queryCall struct {
	from, to time.Time
	handler  motion.Handler
}

type fakeService struct {
	mu            sync.Mutex
	available     bool
	availableHits int
	queries       []queryCall
	starts        []time.Time
	updateHandler motion.Handler
	stops         int
}

func (f *fakeService) IsStepCountingAvailable() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.availableHits++
	return f.available
}

func (f *fakeService) QueryPedometerData(from, to time.Time, handler motion.Handler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, queryCall{from: from, to: to, handler: handler})
}

func (f *fakeService) StartUpdates(from time.Time, handler motion.Handler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts = append(f.starts, from)
	f.updateHandler = handler
}

func (f *fakeService) StopUpdates() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
}

// deliver fires the live update handler registered by the last StartUpdates.
func (f *fakeService) deliver(data *motion.Data, err error) {
	f.mu.Lock()
	h := f.updateHandler
	f.mu.Unlock()
	h(data, err)
}

// answer completes the i-th point query.
func (f *fakeService) answer(i int, data *motion.Data, err error) {
	f.mu.Lock()
	h := f.queries[i].handler
	f.mu.Unlock()
	h(data, err)
}

type sentEvent struct {
	name string
	body map[string]interface{}
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []sentEvent
}

func (r *recordingEmitter) SendEvent(name string, body map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, sentEvent{name: name, body: body})
}

func (r *recordingEmitter) all() []sentEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sentEvent(nil), r.events...)
}

type recordingPromise struct {
	mu       sync.Mutex
	calls    int
	resolved bool
	value    interface{}
	code     string
	message  string
	err      error
	done     chan struct{}
}

func newPromise() *recordingPromise {
	return &recordingPromise{done: make(chan struct{})}
}

func (p *recordingPromise) Resolve(value interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.resolved = true
	p.value = value
	if p.calls == 1 {
		close(p.done)
	}
}

func (p *recordingPromise) Reject(code, message string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.code, p.message, p.err = code, message, err
	if p.calls == 1 {
		close(p.done)
	}
}

func (p *recordingPromise) wait(t *testing.T) {
	t.Helper()
	select {
	case <-p.done:
	case <-time.After(2 * time.Second):
		t.Fatal("promise was never completed")
	}
}

// --- Helpers ---

var fixedNow = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func newTestBridge(t *testing.T, svc *fakeService) (*Bridge, *recordingEmitter) {
	t.Helper()
	em := &recordingEmitter{}
	b, err := New(Config{
		Service:  svc,
		Emitter:  em,
		Executor: inlineExecutor{},
		Now:      func() time.Time { return fixedNow },
	})
	if err != nil {
		t.Fatalf("new bridge: %v", err)
	}
	t.Cleanup(b.Close)
	return b, em
}

func mustResolve(t *testing.T, p *recordingPromise) interface{} {
	t.Helper()
	if p.calls != 1 {
		t.Fatalf("promise completed %d times, want 1", p.calls)
	}
	if !p.resolved {
		t.Fatalf("promise rejected: %s %q", p.code, p.message)
	}
	return p.value
}

// --- isAvailable ---

func TestIsAvailable(t *testing.T) {
	for _, want := range []bool{true, false} {
		svc := &fakeService{available: want}
		b, _ := newTestBridge(t, svc)

		p := newPromise()
		b.IsAvailable(p)
		if got := mustResolve(t, p); got != want {
			t.Errorf("IsAvailable = %v, want %v", got, want)
		}
	}
}

func TestIsAvailableQueriesEveryCall(t *testing.T) {
	svc := &fakeService{available: true}
	b, _ := newTestBridge(t, svc)

	b.IsAvailable(newPromise())
	svc.available = false
	p := newPromise()
	b.IsAvailable(p)

	if got := mustResolve(t, p); got != false {
		t.Errorf("second IsAvailable = %v, want false", got)
	}
	if svc.availableHits != 2 {
		t.Errorf("availability checked %d times, want 2", svc.availableHits)
	}
}

// --- getStepCount ---

func TestGetStepCountResolvesServiceCount(t *testing.T) {
	svc := &fakeService{available: true}
	b, _ := newTestBridge(t, svc)

	p := newPromise()
	b.GetStepCount(1700000000000, 1700003600000.5, p)

	if len(svc.queries) != 1 {
		t.Fatalf("queries = %d, want 1", len(svc.queries))
	}
	q := svc.queries[0]
	if !q.from.Equal(time.UnixMilli(1700000000000)) {
		t.Errorf("from = %v", q.from)
	}
	wantTo := time.UnixMilli(1700003600000).Add(500 * time.Microsecond)
	if !q.to.Equal(wantTo) {
		t.Errorf("to = %v, want %v", q.to, wantTo)
	}

	svc.answer(0, &motion.Data{NumberOfSteps: 4312}, nil)
	if got := mustResolve(t, p); got != 4312 {
		t.Errorf("steps = %v, want 4312", got)
	}
}

func TestGetStepCountNilDataResolvesZero(t *testing.T) {
	svc := &fakeService{}
	b, _ := newTestBridge(t, svc)

	p := newPromise()
	b.GetStepCount(0, 1000, p)
	svc.answer(0, nil, nil)

	if got := mustResolve(t, p); got != 0 {
		t.Errorf("steps = %v, want 0", got)
	}
}

func TestGetStepCountRejectsWithServiceMessage(t *testing.T) {
	svc := &fakeService{}
	b, _ := newTestBridge(t, svc)

	serviceErr := motion.NewError(motion.CodeNotAuthorized, "Motion data access denied")
	p := newPromise()
	b.GetStepCount(0, 1000, p)
	svc.answer(0, nil, serviceErr)

	if p.resolved {
		t.Fatal("expected rejection")
	}
	if p.code != CodeStepCountError {
		t.Errorf("code = %q, want %q", p.code, CodeStepCountError)
	}
	if p.message != "Motion data access denied" {
		t.Errorf("message = %q", p.message)
	}
	if !errors.Is(p.err, serviceErr) {
		t.Errorf("err = %v, want the service error", p.err)
	}
}

func TestGetStepCountPassesInvertedRangeThrough(t *testing.T) {
	svc := &fakeService{}
	b, _ := newTestBridge(t, svc)

	b.GetStepCount(5000, 1000, newPromise())

	if len(svc.queries) != 1 {
		t.Fatalf("queries = %d, want 1", len(svc.queries))
	}
	if !svc.queries[0].to.Before(svc.queries[0].from) {
		t.Error("inverted range should reach the service unchanged")
	}
}

// --- start / stop ---

func TestStartTwiceRegistersOneSubscription(t *testing.T) {
	svc := &fakeService{available: true}
	b, _ := newTestBridge(t, svc)

	p1, p2 := newPromise(), newPromise()
	b.StartStepTracking(p1)
	b.StartStepTracking(p2)

	if got := mustResolve(t, p1); got != nil {
		t.Errorf("first start resolved %v, want nil", got)
	}
	if got := mustResolve(t, p2); got != nil {
		t.Errorf("second start resolved %v, want nil", got)
	}
	if len(svc.starts) != 1 {
		t.Errorf("subscriptions = %d, want 1", len(svc.starts))
	}
	if len(svc.queries) != 1 {
		t.Errorf("priming queries = %d, want 1", len(svc.queries))
	}
}

func TestStartUsesCaptureInstantForSubscriptionAndPriming(t *testing.T) {
	svc := &fakeService{available: true}
	b, _ := newTestBridge(t, svc)

	b.StartStepTracking(newPromise())

	if !svc.starts[0].Equal(fixedNow) {
		t.Errorf("subscription from = %v, want %v", svc.starts[0], fixedNow)
	}
	if !svc.queries[0].from.Equal(fixedNow) {
		t.Errorf("priming from = %v, want %v", svc.queries[0].from, fixedNow)
	}
}

func TestStopWhenIdleDoesNotCancel(t *testing.T) {
	svc := &fakeService{available: true}
	b, _ := newTestBridge(t, svc)

	p := newPromise()
	b.StopStepTracking(p)

	if got := mustResolve(t, p); got != nil {
		t.Errorf("stop resolved %v, want nil", got)
	}
	if svc.stops != 0 {
		t.Errorf("StopUpdates called %d times, want 0", svc.stops)
	}
}

func TestStartUnavailableRejects(t *testing.T) {
	svc := &fakeService{available: false}
	b, em := newTestBridge(t, svc)

	p := newPromise()
	b.StartStepTracking(p)

	if p.resolved {
		t.Fatal("expected rejection")
	}
	if p.code != CodeNotAvailable {
		t.Errorf("code = %q, want %q", p.code, CodeNotAvailable)
	}
	if p.message != "Step counting is not available" {
		t.Errorf("message = %q", p.message)
	}
	if !errors.Is(p.err, ErrNotAvailable) {
		t.Errorf("err = %v", p.err)
	}
	if b.IsTracking() {
		t.Error("tracking should remain false")
	}
	if len(svc.starts) != 0 || len(svc.queries) != 0 {
		t.Error("no subscription or query should be registered")
	}
	if len(em.all()) != 0 {
		t.Error("no events expected")
	}
}

func TestStartStopLifecycle(t *testing.T) {
	svc := &fakeService{available: true}
	b, _ := newTestBridge(t, svc)

	b.StartStepTracking(newPromise())
	if !b.IsTracking() {
		t.Fatal("expected tracking after start")
	}

	p := newPromise()
	b.StopStepTracking(p)
	mustResolve(t, p)
	if b.IsTracking() {
		t.Error("expected idle after stop")
	}
	if svc.stops != 1 {
		t.Errorf("StopUpdates called %d times, want 1", svc.stops)
	}

	// Restart is accepted again.
	b.StartStepTracking(newPromise())
	if len(svc.starts) != 2 {
		t.Errorf("subscriptions = %d, want 2", len(svc.starts))
	}
}

// Mirrors the documented end-to-end scenario: start, one live delivery,
// a delivery error, then a stop that finds the bridge already idle.
func TestTrackingScenario(t *testing.T) {
	svc := &fakeService{available: true}
	b, em := newTestBridge(t, svc)

	p := newPromise()
	b.StartStepTracking(p)
	if got := mustResolve(t, p); got != nil {
		t.Fatalf("start resolved %v", got)
	}
	if !b.IsTracking() {
		t.Fatal("expected tracking")
	}

	svc.answer(0, &motion.Data{NumberOfSteps: 0}, nil)
	events := em.all()
	if len(events) != 1 || events[0].body["steps"] != 0 {
		t.Fatalf("priming events = %+v", events)
	}

	svc.deliver(&motion.Data{NumberOfSteps: 42}, nil)
	events = em.all()
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	if events[1].name != EventStepUpdate || events[1].body["steps"] != 42 {
		t.Errorf("live event = %+v", events[1])
	}
	if _, hasErr := events[1].body["error"]; hasErr {
		t.Error("steps event must not carry error")
	}
	if !b.IsTracking() {
		t.Error("still tracking after a live delivery")
	}

	svc.deliver(nil, errors.New("X"))
	events = em.all()
	if len(events) != 3 || events[2].body["error"] != "X" {
		t.Fatalf("error event = %+v", events)
	}
	if _, hasSteps := events[2].body["steps"]; hasSteps {
		t.Error("error event must not carry steps")
	}
	if b.IsTracking() {
		t.Error("delivery error must end tracking")
	}

	stop := newPromise()
	b.StopStepTracking(stop)
	if got := mustResolve(t, stop); got != nil {
		t.Errorf("stop resolved %v", got)
	}
	if svc.stops != 0 {
		t.Errorf("StopUpdates called %d times, want 0", svc.stops)
	}
}

func TestLiveUpdateWithoutDataIsDropped(t *testing.T) {
	svc := &fakeService{available: true}
	b, em := newTestBridge(t, svc)

	b.StartStepTracking(newPromise())
	svc.deliver(nil, nil)

	if n := len(em.all()); n != 0 {
		t.Errorf("events = %d, want 0", n)
	}
	if !b.IsTracking() {
		t.Error("empty delivery must not end tracking")
	}
}

func TestPrimingErrorIsNotSurfaced(t *testing.T) {
	svc := &fakeService{available: true}
	b, em := newTestBridge(t, svc)

	p := newPromise()
	b.StartStepTracking(p)
	svc.answer(0, nil, errors.New("history unavailable"))

	mustResolve(t, p)
	if n := len(em.all()); n != 0 {
		t.Errorf("events = %d, want 0", n)
	}
	if !b.IsTracking() {
		t.Error("priming failure must not end tracking")
	}
}

func TestPrimingNilDataEmitsZero(t *testing.T) {
	svc := &fakeService{available: true}
	b, em := newTestBridge(t, svc)

	b.StartStepTracking(newPromise())
	svc.answer(0, nil, nil)

	events := em.all()
	if len(events) != 1 || events[0].body["steps"] != 0 {
		t.Errorf("events = %+v", events)
	}
}

func TestDeliveryAfterStopIsDropped(t *testing.T) {
	svc := &fakeService{available: true}
	b, em := newTestBridge(t, svc)

	b.StartStepTracking(newPromise())
	b.StopStepTracking(newPromise())

	svc.deliver(&motion.Data{NumberOfSteps: 7}, nil)
	svc.answer(0, &motion.Data{NumberOfSteps: 3}, nil)

	if n := len(em.all()); n != 0 {
		t.Errorf("events after stop = %d, want 0", n)
	}
}

func TestTrackingChangeCallback(t *testing.T) {
	svc := &fakeService{available: true}
	var changes []bool
	b, err := New(Config{
		Service:           svc,
		Emitter:           &recordingEmitter{},
		Executor:          inlineExecutor{},
		OnTrackingChanged: func(tracking bool) { changes = append(changes, tracking) },
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer b.Close()

	b.StartStepTracking(newPromise())
	b.StartStepTracking(newPromise())
	svc.deliver(nil, errors.New("sensor fault"))
	b.StartStepTracking(newPromise())
	b.StopStepTracking(newPromise())

	want := []bool{true, false, true, false}
	if len(changes) != len(want) {
		t.Fatalf("changes = %v, want %v", changes, want)
	}
	for i := range want {
		if changes[i] != want[i] {
			t.Errorf("changes[%d] = %v, want %v", i, changes[i], want[i])
		}
	}
}

// --- ownership / lifecycle ---

func TestNewRejectsSecondBridgeForService(t *testing.T) {
	svc := &fakeService{}
	b, _ := newTestBridge(t, svc)

	if _, err := New(Config{Service: svc, Emitter: &recordingEmitter{}}); !errors.Is(err, ErrServiceClaimed) {
		t.Fatalf("second New err = %v, want ErrServiceClaimed", err)
	}

	b.Close()
	b2, err := New(Config{Service: svc, Emitter: &recordingEmitter{}, Executor: inlineExecutor{}})
	if err != nil {
		t.Fatalf("New after Close: %v", err)
	}
	b2.Close()
}

func TestNewValidatesConfig(t *testing.T) {
	if _, err := New(Config{Emitter: &recordingEmitter{}}); err == nil {
		t.Error("expected error for nil service")
	}
	if _, err := New(Config{Service: &fakeService{}}); err == nil {
		t.Error("expected error for nil emitter")
	}
}

func TestCloseStopsLiveUpdates(t *testing.T) {
	svc := &fakeService{available: true}
	b, _ := newTestBridge(t, svc)

	b.StartStepTracking(newPromise())
	b.Close()
	b.Close()

	if svc.stops != 1 {
		t.Errorf("StopUpdates called %d times, want 1", svc.stops)
	}
}

func TestOwnQueueSerializesAndRejectsAfterClose(t *testing.T) {
	svc := &fakeService{available: true}
	em := &recordingEmitter{}
	b, err := New(Config{Service: svc, Emitter: em})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	p := newPromise()
	b.StartStepTracking(p)
	p.wait(t)
	if !p.resolved {
		t.Fatalf("start rejected: %s", p.code)
	}
	if !b.IsTracking() {
		t.Fatal("expected tracking")
	}

	// Deliveries from another goroutine land on the queue in order.
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= 5; i++ {
			svc.deliver(&motion.Data{NumberOfSteps: i}, nil)
		}
	}()
	wg.Wait()
	b.IsTracking() // barrier: everything queued before this has run

	events := em.all()
	if len(events) != 5 {
		t.Fatalf("events = %d, want 5", len(events))
	}
	for i, ev := range events {
		if ev.body["steps"] != i+1 {
			t.Errorf("event %d steps = %v, want %d", i, ev.body["steps"], i+1)
		}
	}

	b.Close()

	late := newPromise()
	b.StartStepTracking(late)
	late.wait(t)
	if late.code != CodeBridgeClosed {
		t.Errorf("code after close = %q, want %q", late.code, CodeBridgeClosed)
	}
	if b.IsTracking() {
		t.Error("closed bridge reports tracking")
	}
}

func TestGetStepCountAfterCloseRejects(t *testing.T) {
	svc := &fakeService{available: true}
	b, err := New(Config{Service: svc, Emitter: &recordingEmitter{}})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	b.Close()

	p := newPromise()
	b.GetStepCount(0, 1000, p)
	p.wait(t)
	if p.code != CodeBridgeClosed {
		t.Errorf("code = %q, want %q", p.code, CodeBridgeClosed)
	}
	svc.mu.Lock()
	queries := len(svc.queries)
	svc.mu.Unlock()
	if queries != 0 {
		t.Errorf("service queried %d times after close, want 0", queries)
	}

	// The released service can be claimed by a new bridge.
	next, err := New(Config{Service: svc, Emitter: &recordingEmitter{}})
	if err != nil {
		t.Fatalf("new after close: %v", err)
	}
	next.Close()
}

func TestSupportedEvents(t *testing.T) {
	events := SupportedEvents()
	if len(events) != 1 || events[0] != "onStepUpdate" {
		t.Errorf("SupportedEvents = %v", events)
	}
}
