package sim

import (
	"errors"
	"testing"
	"time"

	"steptracker/config"
	"steptracker/motion"
)

type result struct {
	data *motion.Data
	err  error
}

func query(p *Pedometer, from, to time.Time) result {
	ch := make(chan result, 1)
	p.QueryPedometerData(from, to, func(d *motion.Data, err error) { ch <- result{d, err} })
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		return result{err: errors.New("timeout")}
	}
}

func newFixed(t *testing.T, spm int) (*Pedometer, time.Time) {
	t.Helper()
	boot := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	p := New(config.SimConfig{Available: true, StepsPerMinute: spm})
	p.bootedAt = boot
	p.now = func() time.Time { return boot.Add(time.Hour) }
	return p, boot
}

func TestQueryCountsCadenceWithinLifetime(t *testing.T) {
	p, boot := newFixed(t, 100)

	r := query(p, boot, boot.Add(10*time.Minute))
	if r.err != nil {
		t.Fatalf("query: %v", r.err)
	}
	if r.data.NumberOfSteps != 1000 {
		t.Errorf("steps = %d, want 1000", r.data.NumberOfSteps)
	}
}

func TestQueryClampsToBootAndNow(t *testing.T) {
	p, boot := newFixed(t, 60)

	// Range covers an hour before boot and an hour into the future.
	r := query(p, boot.Add(-time.Hour), boot.Add(2*time.Hour))
	if r.err != nil {
		t.Fatalf("query: %v", r.err)
	}
	if r.data.NumberOfSteps != 3600 {
		t.Errorf("steps = %d, want 3600", r.data.NumberOfSteps)
	}

	r = query(p, boot.Add(-2*time.Hour), boot.Add(-time.Hour))
	if r.err != nil || r.data.NumberOfSteps != 0 {
		t.Errorf("pre-boot range = %+v, %v", r.data, r.err)
	}
}

func TestQueryInvertedRange(t *testing.T) {
	p, boot := newFixed(t, 60)

	r := query(p, boot.Add(time.Minute), boot)
	if !errors.Is(r.err, motion.ErrInvalidRange) {
		t.Errorf("err = %v, want ErrInvalidRange", r.err)
	}
}

func TestQueryUnavailable(t *testing.T) {
	p, boot := newFixed(t, 60)
	p.SetAvailable(false)

	if p.IsStepCountingAvailable() {
		t.Error("expected unavailable")
	}
	r := query(p, boot, boot.Add(time.Minute))
	var merr *motion.Error
	if !errors.As(r.err, &merr) || merr.Code != motion.CodeUnavailable {
		t.Errorf("err = %v, want unavailable", r.err)
	}
}

func TestLiveUpdatesAreCumulative(t *testing.T) {
	p := New(config.SimConfig{Available: true, StepsPerMinute: 60000, UpdateInterval: 10 * time.Millisecond})

	updates := make(chan int, 64)
	p.StartUpdates(time.Now(), func(d *motion.Data, err error) {
		if err == nil && d != nil {
			select {
			case updates <- d.NumberOfSteps:
			default:
			}
		}
	})
	defer p.StopUpdates()

	prev := -1
	for i := 0; i < 3; i++ {
		select {
		case n := <-updates:
			if n <= prev {
				t.Fatalf("update %d = %d, not above previous %d", i, n, prev)
			}
			prev = n
		case <-time.After(2 * time.Second):
			t.Fatal("no live update")
		}
	}
}

func TestStopUpdatesHaltsDelivery(t *testing.T) {
	p := New(config.SimConfig{Available: true, StepsPerMinute: 60000, UpdateInterval: 5 * time.Millisecond})

	updates := make(chan struct{}, 1024)
	p.StartUpdates(time.Now(), func(*motion.Data, error) { updates <- struct{}{} })
	time.Sleep(30 * time.Millisecond)
	p.StopUpdates()

	n := len(updates)
	time.Sleep(30 * time.Millisecond)
	if len(updates) != n {
		t.Errorf("updates continued after StopUpdates: %d -> %d", n, len(updates))
	}
	p.StopUpdates() // no subscription: no-op
}
