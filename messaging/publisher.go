package messaging

import (
	"encoding/json"
	"log"
	"sync"

	"steptracker/engine"
)

// sendQueueSize bounds the hand-off between the bus and the broker. Bodies
// that arrive while it is full are dropped.
const sendQueueSize = 64

// EventPublisher forwards every onStepUpdate body, unchanged, to the events
// topic. Broker sends run on their own goroutine so a slow broker never
// stalls the bridge's delivery context.
type EventPublisher struct {
	transport Transport
	topic     string
	bus       *engine.EventBus
	subID     engine.SubscriberID

	sendCh   chan []byte
	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewEventPublisher creates a publisher for topic.
func NewEventPublisher(transport Transport, bus *engine.EventBus, topic string) *EventPublisher {
	return &EventPublisher{
		transport: transport,
		topic:     topic,
		bus:       bus,
		sendCh:    make(chan []byte, sendQueueSize),
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start subscribes to step updates and begins sending.
func (p *EventPublisher) Start() {
	go p.sendLoop()
	p.subID = p.bus.SubscribeTypes(p.handleStepUpdate, engine.EventStepUpdate)
}

// Stop unsubscribes, sends what is already queued and waits for the send
// loop to exit. sendCh stays open; bodies handed off after Stop are dropped.
func (p *EventPublisher) Stop() {
	p.stopOnce.Do(func() {
		p.bus.Unsubscribe(p.subID)
		close(p.stopCh)
		<-p.done
	})
}

func (p *EventPublisher) handleStepUpdate(evt engine.Event) {
	update := evt.Payload.(engine.StepUpdateEvent)
	data, err := json.Marshal(update.Body)
	if err != nil {
		log.Printf("publisher: encode step update: %v", err)
		return
	}
	select {
	case <-p.stopCh:
		return
	default:
	}
	select {
	case p.sendCh <- data:
	default:
		log.Printf("publisher: send queue full, dropping step update")
	}
}

func (p *EventPublisher) sendLoop() {
	defer close(p.done)
	for {
		select {
		case data := <-p.sendCh:
			p.publish(data)
		case <-p.stopCh:
			for {
				select {
				case data := <-p.sendCh:
					p.publish(data)
				default:
					return
				}
			}
		}
	}
}

func (p *EventPublisher) publish(data []byte) {
	if err := p.transport.Publish(p.topic, data); err != nil {
		log.Printf("publisher: publish to %s: %v", p.topic, err)
	}
}
