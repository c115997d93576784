package protocol

import (
	"encoding/json"
	"testing"
	"time"
)

func TestEnvelopeEncodeDecode(t *testing.T) {
	src := Address{Role: RoleWearable, Node: "band-7"}
	dst := Address{Role: RoleBridge}
	at := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

	env, err := NewEnvelope(TypeStepSample, src, dst, &StepSample{RecordedAt: at, Steps: 42})
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	if env.Version != Version {
		t.Errorf("version = %d, want %d", env.Version, Version)
	}
	if env.ID == "" {
		t.Error("ID should not be empty")
	}
	if got := env.ExpiresAt.Sub(env.Timestamp); got != 24*time.Hour {
		t.Errorf("ttl = %v, want 24h", got)
	}

	data, err := env.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var decoded Envelope
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.ID != env.ID || decoded.Src != src {
		t.Errorf("decoded = %+v", decoded)
	}

	var s StepSample
	if err := decoded.DecodePayload(&s); err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if s.Steps != 42 || !s.RecordedAt.Equal(at) {
		t.Errorf("sample = %+v", s)
	}
}

func TestEnvelopeIDsAreUnique(t *testing.T) {
	a, _ := NewEnvelope(TypeBridgeHeartbeat, Address{}, Address{}, &BridgeHeartbeat{})
	b, _ := NewEnvelope(TypeBridgeHeartbeat, Address{}, Address{}, &BridgeHeartbeat{})
	if a.ID == b.ID {
		t.Errorf("duplicate id %s", a.ID)
	}
}

func TestDefaultTTLFor(t *testing.T) {
	if got := DefaultTTLFor(TypeBridgeHeartbeat); got != 90*time.Second {
		t.Errorf("heartbeat ttl = %v", got)
	}
	if got := DefaultTTLFor("something.else"); got != FallbackTTL {
		t.Errorf("unknown ttl = %v, want fallback", got)
	}
}

func TestExpiryHeader(t *testing.T) {
	if IsExpiredHeader(&RawHeader{}) {
		t.Error("zero expiry should never expire")
	}
	if !IsExpiredHeader(&RawHeader{ExpiresAt: time.Now().UTC().Add(-time.Second)}) {
		t.Error("past expiry should be expired")
	}
	if IsExpiredHeader(&RawHeader{ExpiresAt: time.Now().UTC().Add(time.Minute)}) {
		t.Error("future expiry should not be expired")
	}
}

func TestIngestorDispatch(t *testing.T) {
	handler := &testHandler{}
	ingestor := NewIngestor(handler, nil)

	env, _ := NewEnvelope(TypeStepSampleBatch,
		Address{Role: RoleWearable, Node: "band-7"},
		Address{Role: RoleBridge},
		&StepSampleBatch{Samples: []StepSample{{Steps: 3}, {Steps: 4}}},
	)
	data, _ := env.Encode()
	ingestor.HandleRaw(data)

	if len(handler.batches) != 1 || len(handler.batches[0].Samples) != 2 {
		t.Fatalf("batches = %+v", handler.batches)
	}
	if handler.samples != 0 {
		t.Errorf("single-sample handler called %d times", handler.samples)
	}
}

func TestIngestorFilter(t *testing.T) {
	handler := &testHandler{}
	ingestor := NewIngestor(handler, ForNode("steptracker"))

	for _, node := range []string{"", "*", "steptracker", "other"} {
		env, _ := NewEnvelope(TypeStepSample,
			Address{Role: RoleWearable, Node: "band-7"},
			Address{Role: RoleBridge, Node: node},
			&StepSample{Steps: 1},
		)
		data, _ := env.Encode()
		ingestor.HandleRaw(data)
	}

	if handler.samples != 3 {
		t.Errorf("accepted %d messages, want 3", handler.samples)
	}
}

func TestIngestorDropsExpired(t *testing.T) {
	handler := &testHandler{}
	ingestor := NewIngestor(handler, nil)

	env, _ := NewEnvelope(TypeStepSample, Address{}, Address{}, &StepSample{Steps: 1})
	env.ExpiresAt = time.Now().UTC().Add(-time.Minute)
	data, _ := env.Encode()
	ingestor.HandleRaw(data)

	if handler.samples != 0 {
		t.Error("expired message was dispatched")
	}
}

func TestIngestorDropsBadInput(t *testing.T) {
	handler := &testHandler{}
	ingestor := NewIngestor(handler, nil)

	ingestor.HandleRaw([]byte("not json"))
	ingestor.HandleRaw([]byte(`{"v":2,"type":"step.sample","p":{"steps":1}}`))
	ingestor.HandleRaw([]byte(`{"v":1,"type":"step.unknown","p":{}}`))
	ingestor.HandleRaw([]byte(`{"v":1,"type":"step.sample","p":{"steps":"many"}}`))

	if handler.samples != 0 || len(handler.batches) != 0 {
		t.Errorf("bad input dispatched: samples=%d batches=%d", handler.samples, len(handler.batches))
	}
}

func TestWireFormatKeys(t *testing.T) {
	env, _ := NewEnvelope(TypeBridgeHeartbeat,
		Address{Role: RoleBridge, Node: "n1"},
		Address{},
		&BridgeHeartbeat{Instance: "n1", Uptime: 60, Tracking: true},
	)
	data, _ := env.Encode()

	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, k := range []string{"v", "type", "id", "src", "dst", "ts", "exp", "p"} {
		if _, ok := m[k]; !ok {
			t.Errorf("expected key %q in wire format", k)
		}
	}

	var p map[string]json.RawMessage
	json.Unmarshal(m["p"], &p)
	for _, k := range []string{"instance", "uptime_s", "source", "tracking", "available"} {
		if _, ok := p[k]; !ok {
			t.Errorf("expected payload key %q", k)
		}
	}
}

type testHandler struct {
	NoOpHandler
	samples int
	batches []StepSampleBatch
}

func (h *testHandler) HandleStepSample(env *Envelope, p *StepSample) {
	h.samples++
}

func (h *testHandler) HandleStepSampleBatch(env *Envelope, p *StepSampleBatch) {
	h.batches = append(h.batches, *p)
}
