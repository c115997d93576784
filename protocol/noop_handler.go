package protocol

// NoOpHandler implements MessageHandler with no-op methods.
type NoOpHandler struct{}

func (NoOpHandler) HandleStepSample(*Envelope, *StepSample)           {}
func (NoOpHandler) HandleStepSampleBatch(*Envelope, *StepSampleBatch) {}
func (NoOpHandler) HandleBridgeRegister(*Envelope, *BridgeRegister)   {}
func (NoOpHandler) HandleBridgeHeartbeat(*Envelope, *BridgeHeartbeat) {}

var _ MessageHandler = NoOpHandler{}
