// Package handler defines the lifecycle contract every processing unit in
// the conversational pipeline implements (speech recognition, dialogue,
// synthesis, rendering, client I/O).
//
// The engine drives a handler through the following states for each session:
//
//	created → loaded → context-created → delegate-wired → started → (handling)* → destroyed
//
// No transition may be skipped except that StartContext is optional for
// purely reactive handlers. DestroyContext is reachable from every state and
// is terminal; it must be safe to call even when StartContext was never
// reached.
package handler

import (
	"context"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/NimbusAI/avatarchat/config"
	"github.com/NimbusAI/avatarchat/databundle"
	"github.com/NimbusAI/avatarchat/types"
)

// Info declares a handler's static capabilities: its name, the JSON schema
// its configuration must satisfy, and whether it terminates a transport
// boundary and therefore needs a session delegate wired per session.
type Info struct {
	// Name uniquely identifies the handler kind in configuration.
	Name string

	// ConfigSchema validates the handler's raw configuration at load time.
	// A nil schema accepts any configuration.
	ConfigSchema gojsonschema.JSONLoader

	// NeedsDelegate marks client-boundary handlers. The engine wires a
	// session delegate into them before traffic flows.
	NeedsDelegate bool
}

// DataInfo tags one ChatDataType a handler consumes or produces with the
// bundle definition that type travels under. The definition may be nil on
// the consuming side when the handler accepts whatever the producer declares.
type DataInfo struct {
	Type       types.ChatDataType
	Definition *databundle.Definition
}

// Detail declares the data types a handler consumes and produces for one
// session. The engine validates pipeline wiring against details before the
// session starts.
type Detail struct {
	Inputs  map[types.ChatDataType]DataInfo
	Outputs map[types.ChatDataType]DataInfo
}

// Context is the per-session state a handler keeps. Implementations embed
// BaseContext for the common fields.
type Context interface {
	SessionID() string
}

// BaseContext carries the fields every handler context shares.
type BaseContext struct {
	ID        string
	Submitter types.DataSubmitter
}

// SessionID returns the owning session's identifier.
func (c *BaseContext) SessionID() string { return c.ID }

// AttachSubmitter wires the pipeline entry sink into the context. The engine
// calls this once, right after CreateContext; handlers submit their produced
// envelopes through the attached sink.
func (c *BaseContext) AttachSubmitter(s types.DataSubmitter) { c.Submitter = s }

// SubmitterReceiver is satisfied by contexts embedding BaseContext. The
// engine uses it to wire the pipeline sink without knowing concrete context
// types.
type SubmitterReceiver interface {
	AttachSubmitter(s types.DataSubmitter)
}

// SessionContext is the view of session state handlers receive. The session
// package provides the concrete implementation.
type SessionContext interface {
	// SessionID returns the unique session identifier assigned at connect.
	SessionID() string

	// Timestamp produces a session-scoped monotonic timestamp.
	Timestamp() types.Timestamp

	// SharedState reads a cross-handler shared value.
	SharedState(key string) (interface{}, bool)

	// SetSharedState publishes a cross-handler shared value.
	SetSharedState(key string, value interface{})
}

// Handler is the lifecycle contract driven by the engine. Handle must not
// block on I/O beyond short, bounded operations: long-running work belongs
// to the handler's own internal concurrency, not this call.
type Handler interface {
	// HandlerInfo declares the handler's static capabilities.
	HandlerInfo() Info

	// Load performs one-time, process-lifetime initialization. A failure is
	// fatal to engine startup.
	Load(engineCfg *config.EngineConfig, handlerCfg config.HandlerConfig) error

	// CreateContext builds the per-session state object. It must not mutate
	// shared process state.
	CreateContext(sc SessionContext, handlerCfg config.HandlerConfig) (Context, error)

	// StartContext signals the handler it may begin producing or consuming.
	// A no-op implementation is valid.
	StartContext(sc SessionContext, hc Context) error

	// HandlerDetail declares the data types consumed and produced for this
	// session, each tagged with its bundle definition.
	HandlerDetail(sc SessionContext, hc Context) Detail

	// Handle processes one item. Boundary handlers route the item onto their
	// session delegate's queue matching the item's channel.
	Handle(hc Context, in *types.ChatData, outputs map[types.ChatDataType]DataInfo) error

	// DestroyContext releases per-session resources. Idempotent by design.
	DestroyContext(hc Context)
}

// ClientHandler is implemented by handlers that terminate a transport
// boundary. The engine wires the session delegate into them once per
// session, before traffic flows.
type ClientHandler interface {
	Handler

	// SetupSessionDelegate receives the session delegate with its timestamp
	// source, submission sink and channel definition table already attached.
	SetupSessionDelegate(sc SessionContext, hc Context, delegate SessionDelegate) error
}

// PutResult is the outcome of a SessionDelegate.PutData call, kept distinct
// from errors: a drop is a normal best-effort outcome at the transport
// boundary, an error is a hard contract breach.
type PutResult int

const (
	// PutSubmitted means the frame was wrapped and handed to the pipeline.
	PutSubmitted PutResult = iota
	// PutDropped means the call was silently ignored (unknown modality,
	// missing channel definition, or no submitter wired).
	PutDropped
)

// String returns the lowercase name of the result.
func (r PutResult) String() string {
	if r == PutDropped {
		return "dropped"
	}
	return "submitted"
}

// PutOptions carries the optional arguments of PutData.
type PutOptions struct {
	// Timestamp overrides the delegate's timestamp source when non-nil.
	Timestamp *types.Timestamp

	// Loopback additionally enqueues the produced ChatData onto the matching
	// outbound queue so the producer immediately observes its own submission.
	Loopback bool
}

// SessionDelegate is the per-session bridge between raw transport frames and
// ChatData traffic. The session package provides the concrete queue-backed
// implementation; boundary handlers consume this interface.
type SessionDelegate interface {
	// GetData awaits the next queued item on the given channel. With a
	// positive timeout a miss returns (nil, nil) — "no data", a normal poll
	// miss. With a zero timeout it blocks until an item arrives or ctx is
	// canceled; cancellation never corrupts queue state.
	GetData(ctx context.Context, ch types.EngineChannelType, timeout time.Duration) (*types.ChatData, error)

	// PutData wraps a raw frame into the channel's registered bundle
	// definition and submits it to the pipeline sink.
	PutData(ch types.EngineChannelType, raw interface{}, opts PutOptions) (PutResult, error)

	// Enqueue places an item onto the outbound queue matching its channel.
	// Used by boundary handlers to surface pipeline output to the transport.
	Enqueue(data *types.ChatData)

	// EmitSignal forwards an out-of-band control notification.
	EmitSignal(sig types.ChatSignal)

	// ClearData drains all channel queues without processing.
	ClearData()
}
