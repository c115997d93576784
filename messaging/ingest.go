package messaging

import (
	"context"
	"log"
	"time"

	"steptracker/engine"
	"steptracker/motion"
	"steptracker/protocol"
)

const appendTimeout = 5 * time.Second

// SampleIngestor appends wearable samples arriving on the samples topic to
// the store the recorded pedometer reads.
type SampleIngestor struct {
	protocol.NoOpHandler

	transport Transport
	topic     string
	samples   engine.SampleStore
	ingestor  *protocol.Ingestor
}

// NewSampleIngestor creates an ingestor accepting samples addressed to node
// or to any bridge.
func NewSampleIngestor(transport Transport, samples engine.SampleStore, topic, node string) *SampleIngestor {
	i := &SampleIngestor{
		transport: transport,
		topic:     topic,
		samples:   samples,
	}
	i.ingestor = protocol.NewIngestor(i, protocol.ForNode(node))
	return i
}

// Start subscribes to the samples topic.
func (i *SampleIngestor) Start() error {
	return i.transport.Subscribe(i.topic, i.ingestor.HandleRaw)
}

func (i *SampleIngestor) HandleStepSample(env *protocol.Envelope, p *protocol.StepSample) {
	i.appendSamples(env, []protocol.StepSample{*p})
}

func (i *SampleIngestor) HandleStepSampleBatch(env *protocol.Envelope, p *protocol.StepSampleBatch) {
	i.appendSamples(env, p.Samples)
}

func (i *SampleIngestor) appendSamples(env *protocol.Envelope, in []protocol.StepSample) {
	if len(in) == 0 {
		return
	}
	samples := make([]motion.Sample, len(in))
	for n, s := range in {
		samples[n] = motion.Sample{RecordedAt: s.RecordedAt, Steps: s.Steps}
	}

	ctx, cancel := context.WithTimeout(context.Background(), appendTimeout)
	defer cancel()
	if err := i.samples.AppendSamples(ctx, samples); err != nil {
		log.Printf("ingest: %s from %s: %v", env.ID, env.Src.Node, err)
		return
	}
	log.Printf("ingest: stored %d samples from %s", len(samples), env.Src.Node)
}
