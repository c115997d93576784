// Package remote implements a pedometer exposed by a gateway over HTTP:
// REST for status and history, server-sent events for live updates.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"steptracker/config"
	"steptracker/motion"
)

// --- Gateway API payload types ---

type gatewayStatus struct {
	Available bool   `json:"available"`
	Device    string `json:"device"`
	Error     string `json:"error"`
}

type gatewaySteps struct {
	Steps    *int     `json:"steps"`
	Start    int64    `json:"start"`
	End      int64    `json:"end"`
	Distance *float64 `json:"distance"`
}

type gatewayError struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

type gatewayHealth struct {
	Available bool   `json:"available"`
	Error     string `json:"error"`
}

const defaultConnectAttempts = 5

// Pedometer is a motion.Service backed by a remote gateway.
type Pedometer struct {
	mu        sync.Mutex
	cfg       config.RemoteConfig
	client    http.Client
	sseClient http.Client // no timeout, used for the long-lived event stream

	streamUp   bool
	lastHealth *gatewayHealth

	sseCancel context.CancelFunc
	wg        sync.WaitGroup

	connectAttempts int
	backoffBase     time.Duration
}

// New creates a remote pedometer.
func New(cfg config.RemoteConfig) *Pedometer {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Pedometer{
		cfg:             cfg,
		client:          http.Client{Timeout: timeout},
		sseClient:       http.Client{Timeout: 0},
		connectAttempts: defaultConnectAttempts,
		backoffBase:     time.Second,
	}
}

// baseURL returns the gateway base URL built from host+port config.
func (p *Pedometer) baseURL() string {
	return fmt.Sprintf("http://%s:%d/api", p.cfg.Host, p.cfg.Port)
}

// IsStepCountingAvailable uses the live stream's latest health report while
// subscribed, and asks the gateway otherwise.
func (p *Pedometer) IsStepCountingAvailable() bool {
	p.mu.Lock()
	if p.streamUp && p.lastHealth != nil {
		available := p.lastHealth.Available
		p.mu.Unlock()
		return available
	}
	p.mu.Unlock()

	var st gatewayStatus
	if err := p.getJSON(context.Background(), "/status", &st); err != nil {
		log.Printf("remote: status: %v", err)
		return false
	}
	if !st.Available && st.Error != "" {
		log.Printf("remote: gateway reports %s unavailable: %s", st.Device, st.Error)
	}
	return st.Available
}

func (p *Pedometer) QueryPedometerData(from, to time.Time, handler motion.Handler) {
	go func() {
		q := url.Values{}
		q.Set("from", strconv.FormatInt(from.UnixMilli(), 10))
		q.Set("to", strconv.FormatInt(to.UnixMilli(), 10))

		var resp gatewaySteps
		if err := p.getJSON(context.Background(), "/steps?"+q.Encode(), &resp); err != nil {
			handler(nil, err)
			return
		}
		handler(resp.toData(), nil)
	}()
}

// StartUpdates opens the event stream, replacing any running subscription.
func (p *Pedometer) StartUpdates(from time.Time, handler motion.Handler) {
	p.StopUpdates()

	ctx, cancel := context.WithCancel(context.Background())
	p.mu.Lock()
	p.sseCancel = cancel
	p.mu.Unlock()

	p.wg.Add(1)
	go p.streamLoop(ctx, from, handler)
}

func (p *Pedometer) StopUpdates() {
	p.mu.Lock()
	cancel := p.sseCancel
	p.sseCancel = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
		p.wg.Wait()
	}
}

// streamLoop connects with capped exponential backoff. Once a stream has
// been established, losing it ends the subscription with an error.
func (p *Pedometer) streamLoop(ctx context.Context, from time.Time, handler motion.Handler) {
	defer p.wg.Done()

	attempt := 0
	for {
		connected, err := p.stream(ctx, from, handler)
		if ctx.Err() != nil {
			return
		}

		var merr *motion.Error
		if errors.As(err, &merr) {
			handler(nil, merr)
			return
		}
		if connected {
			log.Printf("remote: event stream lost: %v", err)
			handler(nil, &motion.Error{Code: motion.CodeSourceOffline, Message: "Lost connection to the pedometer gateway", Err: err})
			return
		}

		attempt++
		if attempt >= p.connectAttempts {
			log.Printf("remote: giving up after %d attempts: %v", attempt, err)
			handler(nil, &motion.Error{Code: motion.CodeSourceOffline, Message: "Could not reach the pedometer gateway", Err: err})
			return
		}
		if !p.backoff(ctx, attempt) {
			return
		}
	}
}

// stream runs one connection. connected reports whether the gateway
// accepted the stream before it ended.
func (p *Pedometer) stream(ctx context.Context, from time.Time, handler motion.Handler) (connected bool, err error) {
	u := p.baseURL() + "/events?types=step-update,health&from=" + strconv.FormatInt(from.UnixMilli(), 10)
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return false, fmt.Errorf("stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := p.sseClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("stream connect: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("stream status %d", resp.StatusCode)
	}

	p.setStreamUp(true)
	defer p.setStreamUp(false)
	log.Printf("remote: event stream connected: %s", u)

	reader := newStreamReader(resp.Body)
	for {
		ev, err := reader.Next()
		if err != nil {
			if err == io.EOF {
				return true, fmt.Errorf("stream closed by gateway")
			}
			return true, fmt.Errorf("stream read: %w", err)
		}

		switch ev.Event {
		case "step-update":
			p.handleStepUpdate(ev.Data, handler)
		case "health":
			if herr := p.handleHealth(ev.Data); herr != nil {
				return true, herr
			}
		default:
			// Ignore unknown event types
		}
	}
}

func (p *Pedometer) handleStepUpdate(data string, handler motion.Handler) {
	var update gatewaySteps
	if err := json.Unmarshal([]byte(data), &update); err != nil {
		log.Printf("remote: step-update decode: %v", err)
		return
	}
	handler(update.toData(), nil)
}

// handleHealth records the report and returns an error when the device has
// stopped counting.
func (p *Pedometer) handleHealth(data string) *motion.Error {
	var health gatewayHealth
	if err := json.Unmarshal([]byte(data), &health); err != nil {
		log.Printf("remote: health decode: %v", err)
		return nil
	}

	p.mu.Lock()
	wasAvailable := p.lastHealth == nil || p.lastHealth.Available
	p.lastHealth = &health
	p.mu.Unlock()

	if wasAvailable && !health.Available {
		msg := health.Error
		if msg == "" {
			msg = "Step counting is not available on this device"
		}
		return motion.NewError(motion.CodeUnavailable, msg)
	}
	return nil
}

func (p *Pedometer) setStreamUp(up bool) {
	p.mu.Lock()
	p.streamUp = up
	if !up {
		p.lastHealth = nil
	}
	p.mu.Unlock()
}

// backoff waits with capped exponential backoff + jitter.
// Returns false if the subscription was stopped during the wait.
func (p *Pedometer) backoff(ctx context.Context, attempt int) bool {
	base := p.backoffBase * time.Duration(1<<uint(attempt-1))
	if ceiling := 30 * p.backoffBase; base > ceiling {
		base = ceiling
	}
	// ±20% jitter
	wait := time.Duration(float64(base) * (0.8 + 0.4*rand.Float64()))

	log.Printf("remote: reconnecting in %v (attempt %d)", wait.Round(time.Millisecond), attempt)

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// getJSON fetches path and decodes a 200 response into v. Non-200 answers
// become *motion.Error carrying the gateway's code and message.
func (p *Pedometer) getJSON(ctx context.Context, path string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "GET", p.baseURL()+path, nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return &motion.Error{Code: motion.CodeSourceOffline, Message: "Could not reach the pedometer gateway", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var ge gatewayError
		json.NewDecoder(resp.Body).Decode(&ge)
		if ge.Code == "" {
			ge.Code = motion.CodeSourceOffline
		}
		if ge.Error == "" {
			ge.Error = fmt.Sprintf("gateway returned status %d", resp.StatusCode)
		}
		return motion.NewError(ge.Code, ge.Error)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (s *gatewaySteps) toData() *motion.Data {
	if s.Steps == nil {
		return nil
	}
	return &motion.Data{
		StartDate:     time.UnixMilli(s.Start),
		EndDate:       time.UnixMilli(s.End),
		NumberOfSteps: *s.Steps,
		Distance:      s.Distance,
	}
}
