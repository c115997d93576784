package protocol

import "time"

// Samples stay useful for a day so a wearable that was offline can still
// backfill; status messages go stale with the next heartbeat.
var defaultTTLs = map[string]time.Duration{
	TypeStepSample:      24 * time.Hour,
	TypeStepSampleBatch: 24 * time.Hour,

	TypeBridgeRegister:  5 * time.Minute,
	TypeBridgeHeartbeat: 90 * time.Second,
}

// FallbackTTL is used when no specific TTL is configured.
const FallbackTTL = 10 * time.Minute

// DefaultTTLFor returns the default TTL for a message type.
func DefaultTTLFor(msgType string) time.Duration {
	if ttl, ok := defaultTTLs[msgType]; ok {
		return ttl
	}
	return FallbackTTL
}

// IsExpiredHeader checks expiry using only the raw header.
func IsExpiredHeader(hdr *RawHeader) bool {
	if hdr.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().UTC().After(hdr.ExpiresAt)
}
