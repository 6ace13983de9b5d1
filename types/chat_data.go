package types

import (
	"github.com/NimbusAI/avatarchat/databundle"
)

// Source values recorded on ChatData envelopes.
const (
	// SourceClient marks data that entered through a client transport boundary.
	SourceClient = "client"
	// SourceInternal marks data produced by an internal handler.
	SourceInternal = "internal"
)

// Timestamp is the monotonic timestamp pair attached to every ChatData
// envelope: a session-relative monotonic reading plus a wall-clock reading,
// both in milliseconds.
type Timestamp struct {
	// SessionMillis is milliseconds since the session started, taken from a
	// monotonic clock. Comparable only within one session.
	SessionMillis int64

	// WallMillis is the Unix wall-clock time in milliseconds.
	WallMillis int64
}

// TimestampSource produces session-scoped timestamps. Session delegates call
// it whenever a frame arrives without an explicit timestamp.
type TimestampSource func() Timestamp

// ChatData is the envelope carrying one DataBundle between the transport
// boundary and the handler pipeline. Envelopes are produced at ingestion and
// at each handler boundary and are immutable once constructed; the bundle
// they carry is owned by the envelope and is never shared across sessions.
type ChatData struct {
	// Source is SourceClient or SourceInternal.
	Source string

	// Type is the semantic tag deciding which handlers consume the item.
	Type ChatDataType

	// Data is the schema-bound payload.
	Data *databundle.DataBundle

	// Timestamp is when the item was produced, in session and wall time.
	Timestamp Timestamp
}

// DataSubmitter is the entry point of the handler pipeline. Session
// delegates submit every ingested envelope through it; implementations must
// not block beyond short, bounded operations.
type DataSubmitter interface {
	Submit(data *ChatData) error
}

// SubmitterFunc adapts a function to the DataSubmitter interface.
type SubmitterFunc func(data *ChatData) error

// Submit calls f(data).
func (f SubmitterFunc) Submit(data *ChatData) error {
	return f(data)
}
