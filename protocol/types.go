package protocol

// Message type constants.
const (
	// Wearable -> bridge (published on the samples topic)
	TypeStepSample      = "step.sample"
	TypeStepSampleBatch = "step.sample_batch"

	// Bridge -> listeners (published on the status topic)
	TypeBridgeRegister  = "bridge.register"
	TypeBridgeHeartbeat = "bridge.heartbeat"
)

// Roles for Address.Role.
const (
	RoleWearable = "wearable"
	RoleBridge   = "bridge"
)

// Protocol version.
const Version = 1
