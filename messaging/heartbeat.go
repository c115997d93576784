package messaging

import (
	"log"
	"os"
	"sync"
	"time"

	"steptracker/bridge"
	"steptracker/protocol"
)

// BridgeStatus is what the heartbeater reports about the running bridge.
type BridgeStatus interface {
	Source() string
	Tracking() bool
	Available() bool
}

// Heartbeater sends bridge.register on startup and bridge.heartbeat
// periodically.
type Heartbeater struct {
	client    EnvelopeTransport
	status    BridgeStatus
	instance  string
	topic     string
	interval  time.Duration
	startTime time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewHeartbeater creates a heartbeater for the given bridge instance.
func NewHeartbeater(client EnvelopeTransport, status BridgeStatus, instance, statusTopic string, interval time.Duration) *Heartbeater {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return &Heartbeater{
		client:   client,
		status:   status,
		instance: instance,
		topic:    statusTopic,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start sends an initial registration and begins the heartbeat loop.
func (h *Heartbeater) Start() {
	h.startTime = time.Now()
	h.sendRegister()
	h.wg.Add(1)
	go h.loop()
}

// Stop halts the heartbeat loop.
func (h *Heartbeater) Stop() {
	h.stopOnce.Do(func() { close(h.stopCh) })
	h.wg.Wait()
}

func (h *Heartbeater) src() protocol.Address {
	return protocol.Address{Role: protocol.RoleBridge, Node: h.instance}
}

func (h *Heartbeater) sendRegister() {
	hostname, _ := os.Hostname()
	h.send(protocol.TypeBridgeRegister, &protocol.BridgeRegister{
		Instance: h.instance,
		Hostname: hostname,
		Source:   h.status.Source(),
		Events:   bridge.SupportedEvents(),
	})
	log.Printf("heartbeater: sent bridge.register (instance=%s)", h.instance)
}

func (h *Heartbeater) sendHeartbeat() {
	h.send(protocol.TypeBridgeHeartbeat, &protocol.BridgeHeartbeat{
		Instance:  h.instance,
		Uptime:    int64(time.Since(h.startTime).Seconds()),
		Source:    h.status.Source(),
		Tracking:  h.status.Tracking(),
		Available: h.status.Available(),
	})
}

func (h *Heartbeater) send(msgType string, payload any) {
	env, err := protocol.NewEnvelope(msgType, h.src(), protocol.Address{}, payload)
	if err != nil {
		log.Printf("heartbeater: build %s: %v", msgType, err)
		return
	}
	if err := h.client.PublishEnvelope(h.topic, env); err != nil {
		log.Printf("heartbeater: send %s: %v", msgType, err)
	}
}

func (h *Heartbeater) loop() {
	defer h.wg.Done()
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-h.stopCh:
			return
		case <-ticker.C:
			h.sendHeartbeat()
		}
	}
}
