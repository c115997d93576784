// Package recorded implements a pedometer over a history of wearable
// samples. Queries sum the samples in range; live updates poll the history.
package recorded

import (
	"context"
	"log"
	"sync"
	"time"

	"steptracker/motion"
)

// SampleSource is the sample history the pedometer reads.
type SampleSource interface {
	SumSteps(ctx context.Context, from, to time.Time) (int, error)
	Ping(ctx context.Context) error
}

const pingTimeout = 2 * time.Second

// Pedometer is a motion.Service over a SampleSource.
type Pedometer struct {
	src      SampleSource
	pollRate time.Duration
	now      func() time.Time

	mu       sync.Mutex
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// New creates a recorded pedometer polling src every pollRate while
// subscribed.
func New(src SampleSource, pollRate time.Duration) *Pedometer {
	if pollRate <= 0 {
		pollRate = time.Second
	}
	return &Pedometer{src: src, pollRate: pollRate, now: time.Now}
}

// IsStepCountingAvailable reports whether the sample history answers.
func (p *Pedometer) IsStepCountingAvailable() bool {
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := p.src.Ping(ctx); err != nil {
		log.Printf("recorded: sample source unreachable: %v", err)
		return false
	}
	return true
}

func (p *Pedometer) QueryPedometerData(from, to time.Time, handler motion.Handler) {
	go func() {
		handler(p.sum(from, to))
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
	go p.pollLoop(from, handler, stop)
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

func (p *Pedometer) pollLoop(from time.Time, handler motion.Handler, stop chan struct{}) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.pollRate)
	defer ticker.Stop()

	last := -1
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			data, err := p.sum(from, p.now())
			if err != nil {
				log.Printf("recorded: poll: %v", err)
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

func (p *Pedometer) sum(from, to time.Time) (*motion.Data, error) {
	if to.Before(from) {
		return nil, motion.ErrInvalidRange
	}
	steps, err := p.src.SumSteps(context.Background(), from, to)
	if err != nil {
		return nil, &motion.Error{Code: motion.CodeSourceOffline, Message: err.Error(), Err: err}
	}
	return &motion.Data{StartDate: from, EndDate: to, NumberOfSteps: steps}, nil
}
