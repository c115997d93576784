package protocol

import (
	"encoding/json"
	"log"
)

// FilterFunc returns true if the message should be processed.
type FilterFunc func(hdr *RawHeader) bool

// MessageHandler defines callbacks for all protocol message types.
// Embed NoOpHandler and override only the methods you need.
type MessageHandler interface {
	HandleStepSample(env *Envelope, p *StepSample)
	HandleStepSampleBatch(env *Envelope, p *StepSampleBatch)
	HandleBridgeRegister(env *Envelope, p *BridgeRegister)
	HandleBridgeHeartbeat(env *Envelope, p *BridgeHeartbeat)
}

// Ingestor performs two-phase decode and dispatches to a MessageHandler.
type Ingestor struct {
	handler MessageHandler
	filter  FilterFunc
}

// NewIngestor creates an ingestor with the given handler and filter.
func NewIngestor(handler MessageHandler, filter FilterFunc) *Ingestor {
	return &Ingestor{
		handler: handler,
		filter:  filter,
	}
}

// HandleRaw is the entry point for raw message bytes from the messaging layer.
func (ing *Ingestor) HandleRaw(data []byte) {
	// Phase 1: decode routing header only
	var hdr RawHeader
	if err := json.Unmarshal(data, &hdr); err != nil {
		log.Printf("protocol: header decode error: %v", err)
		return
	}

	if hdr.Version != Version {
		log.Printf("protocol: dropping message %s with version %d", hdr.ID, hdr.Version)
		return
	}
	if IsExpiredHeader(&hdr) {
		log.Printf("protocol: dropping expired message %s (type=%s)", hdr.ID, hdr.Type)
		return
	}
	if ing.filter != nil && !ing.filter(&hdr) {
		return
	}

	// Phase 2: full envelope decode
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Printf("protocol: envelope decode error: %v", err)
		return
	}

	switch env.Type {
	case TypeStepSample:
		decodeAndCall(ing.handler.HandleStepSample, &env)
	case TypeStepSampleBatch:
		decodeAndCall(ing.handler.HandleStepSampleBatch, &env)
	case TypeBridgeRegister:
		decodeAndCall(ing.handler.HandleBridgeRegister, &env)
	case TypeBridgeHeartbeat:
		decodeAndCall(ing.handler.HandleBridgeHeartbeat, &env)
	default:
		log.Printf("protocol: unknown message type: %s", env.Type)
	}
}

// decodeAndCall unmarshals the payload and calls the handler method.
func decodeAndCall[T any](fn func(*Envelope, *T), env *Envelope) {
	var p T
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		log.Printf("protocol: payload decode error for %s: %v", env.Type, err)
		return
	}
	fn(env, &p)
}

// ForNode accepts messages addressed to node or to any bridge.
func ForNode(node string) FilterFunc {
	return func(hdr *RawHeader) bool {
		return hdr.Dst.Node == "" || hdr.Dst.Node == "*" || hdr.Dst.Node == node
	}
}
