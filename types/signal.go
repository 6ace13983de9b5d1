package types

// ChatSignalType enumerates the out-of-band control notifications a session
// delegate can emit alongside the data channels.
type ChatSignalType int

const (
	// SignalNone is the zero value.
	SignalNone ChatSignalType = iota
	// SignalInterrupt asks downstream handlers to abandon in-flight output.
	SignalInterrupt
	// SignalStop announces imminent session teardown.
	SignalStop
)

// String returns the lowercase name of the signal type.
func (s ChatSignalType) String() string {
	switch s {
	case SignalInterrupt:
		return "interrupt"
	case SignalStop:
		return "stop"
	default:
		return "none"
	}
}

// ChatSignal is an out-of-band control notification. Signals bypass the
// per-channel queues: the delegate is a pass-through point, not a queue.
type ChatSignal struct {
	Type ChatSignalType

	// SessionID identifies the originating session.
	SessionID string

	// Payload carries signal-specific detail. Its shape is defined by the
	// emitting handler.
	Payload map[string]interface{}
}
