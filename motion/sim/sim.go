// Package sim provides a pedometer that walks at a fixed cadence, so the
// service can run on machines without motion hardware.
package sim

import (
	"log"
	"sync"
	"time"

	"steptracker/config"
	"steptracker/motion"
)

// Pedometer is a simulated motion.Service. History begins when the
// pedometer is created; nothing was walked before that.
type Pedometer struct {
	mu             sync.Mutex
	available      bool
	stepsPerMinute int
	interval       time.Duration
	bootedAt       time.Time
	now            func() time.Time

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// New creates a simulated pedometer.
func New(cfg config.SimConfig) *Pedometer {
	interval := cfg.UpdateInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Pedometer{
		available:      cfg.Available,
		stepsPerMinute: cfg.StepsPerMinute,
		interval:       interval,
		bootedAt:       time.Now(),
		now:            time.Now,
	}
}

// SetAvailable toggles the reported hardware availability.
func (p *Pedometer) SetAvailable(available bool) {
	p.mu.Lock()
	p.available = available
	p.mu.Unlock()
}

func (p *Pedometer) IsStepCountingAvailable() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.available
}

func (p *Pedometer) QueryPedometerData(from, to time.Time, handler motion.Handler) {
	go func() {
		handler(p.count(from, to))
	}()
}

// StartUpdates replaces any running subscription.
func (p *Pedometer) StartUpdates(from time.Time, handler motion.Handler) {
	p.StopUpdates()

	p.mu.Lock()
	stop := make(chan struct{})
	p.stopChan = stop
	p.mu.Unlock()

	p.wg.Add(1)
	go p.updateLoop(from, handler, stop)
}

func (p *Pedometer) StopUpdates() {
	p.mu.Lock()
	stop := p.stopChan
	p.stopChan = nil
	p.mu.Unlock()

	if stop != nil {
		close(stop)
		p.wg.Wait()
	}
}

func (p *Pedometer) updateLoop(from time.Time, handler motion.Handler, stop chan struct{}) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	last := -1
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			data, err := p.count(from, p.now())
			if err != nil {
				log.Printf("sim: live update: %v", err)
				handler(nil, err)
				return
			}
			if data.NumberOfSteps == last {
				continue
			}
			last = data.NumberOfSteps
			handler(data, nil)
		}
	}
}

func (p *Pedometer) count(from, to time.Time) (*motion.Data, error) {
	p.mu.Lock()
	available := p.available
	spm := p.stepsPerMinute
	booted := p.bootedAt
	now := p.now()
	p.mu.Unlock()

	if !available {
		return nil, motion.NewError(motion.CodeUnavailable, "Step counting is not available on this device")
	}
	if to.Before(from) {
		return nil, motion.ErrInvalidRange
	}

	start, end := from, to
	if start.Before(booted) {
		start = booted
	}
	if end.After(now) {
		end = now
	}
	steps := 0
	if end.After(start) {
		steps = int(end.Sub(start).Minutes() * float64(spm))
	}
	return &motion.Data{StartDate: from, EndDate: to, NumberOfSteps: steps}, nil
}
