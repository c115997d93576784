package protocol

import "time"

// StepSample is one wearable reading: Steps walked in the window ending at
// RecordedAt.
type StepSample struct {
	RecordedAt time.Time `json:"recorded_at"`
	Steps      int       `json:"steps"`
}

// StepSampleBatch carries several readings, usually a backfill.
type StepSampleBatch struct {
	Samples []StepSample `json:"samples"`
}

// BridgeRegister is published once when a bridge comes up.
type BridgeRegister struct {
	Instance string   `json:"instance"`
	Hostname string   `json:"hostname"`
	Source   string   `json:"source"`
	Events   []string `json:"events"`
}

// BridgeHeartbeat is published periodically by a running bridge.
type BridgeHeartbeat struct {
	Instance  string `json:"instance"`
	Uptime    int64  `json:"uptime_s"`
	Source    string `json:"source"`
	Tracking  bool   `json:"tracking"`
	Available bool   `json:"available"`
}
