package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/NimbusAI/avatarchat/databundle"
	"github.com/NimbusAI/avatarchat/events"
	"github.com/NimbusAI/avatarchat/handler"
	"github.com/NimbusAI/avatarchat/logger"
	"github.com/NimbusAI/avatarchat/metrics/prometheus"
	"github.com/NimbusAI/avatarchat/types"
)

// inboundMapping decides which ChatDataType a raw frame arriving on each
// channel is tagged with. Frames entering through the transport boundary are
// always client-attributed.
var inboundMapping = map[types.EngineChannelType]types.ChatDataType{
	types.ChannelAudio: types.DataMicAudio,
	types.ChannelVideo: types.DataCameraVideo,
	types.ChannelText:  types.DataHumanText,
}

// Delegate is the channel queue bridge: the sole mediator between raw
// transport frames and ChatData traffic for one session. It keeps one
// unbounded FIFO queue per engine channel; ordering is guaranteed within a
// channel, never across channels.
//
// Wiring (timestamp source, submission sink, channel definitions) happens
// once per session before traffic flows; traffic methods are safe for
// concurrent use afterwards.
type Delegate struct {
	sessionID string
	queues    map[types.EngineChannelType]*chatQueue
	signals   *events.SignalBus

	mu        sync.RWMutex
	defs      map[types.EngineChannelType]*databundle.Definition
	tsSource  types.TimestampSource
	submitter types.DataSubmitter
}

// NewDelegate creates an unwired delegate for the given session. Signals
// emitted before a bus is attached are discarded.
func NewDelegate(sessionID string, signals *events.SignalBus) *Delegate {
	queues := make(map[types.EngineChannelType]*chatQueue, len(types.Channels))
	for _, ch := range types.Channels {
		queues[ch] = newChatQueue()
	}
	return &Delegate{
		sessionID: sessionID,
		queues:    queues,
		signals:   signals,
		defs:      make(map[types.EngineChannelType]*databundle.Definition),
	}
}

// SessionID returns the owning session's identifier.
func (d *Delegate) SessionID() string { return d.sessionID }

// SetTimestampSource wires the session-scoped timestamp generator.
func (d *Delegate) SetTimestampSource(src types.TimestampSource) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tsSource = src
}

// SetSubmitter wires the pipeline entry sink.
func (d *Delegate) SetSubmitter(s types.DataSubmitter) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.submitter = s
}

// SetInputDefinition registers the bundle definition frames arriving on the
// given channel are wrapped into.
func (d *Delegate) SetInputDefinition(ch types.EngineChannelType, def *databundle.Definition) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.defs[ch] = def
}

// Timestamp produces a timestamp from the wired source, or the zero pair
// when no source is wired yet.
func (d *Delegate) Timestamp() types.Timestamp {
	d.mu.RLock()
	src := d.tsSource
	d.mu.RUnlock()
	if src == nil {
		return types.Timestamp{}
	}
	return src()
}

// Submit hands an already-built envelope to the wired pipeline sink.
// Returns a drop when no sink is wired.
func (d *Delegate) Submit(data *types.ChatData) error {
	d.mu.RLock()
	submitter := d.submitter
	d.mu.RUnlock()
	if submitter == nil {
		return fmt.Errorf("session %s: no submitter wired", d.sessionID)
	}
	return submitter.Submit(data)
}

// GetData awaits the next queued item on the given channel. With a positive
// timeout a miss returns (nil, nil) — a normal poll miss enabling
// cooperative, non-blocking frame pumps. With timeout <= 0 it blocks until
// an item arrives or ctx is canceled.
func (d *Delegate) GetData(ctx context.Context, ch types.EngineChannelType, timeout time.Duration) (*types.ChatData, error) {
	q, ok := d.queues[ch]
	if !ok {
		return nil, nil
	}
	data, err := q.get(ctx, timeout)
	prometheus.SetQueueDepth(d.sessionID, ch.String(), q.depth())
	return data, err
}

// PutData wraps a raw frame into the channel's registered bundle definition
// and submits the resulting ChatData to the pipeline sink.
//
// Unknown modality, missing channel definition, or an unwired sink drop the
// call silently (PutDropped, nil error): a deliberate best-effort contract
// at the transport boundary. Kind or shape mismatches are hard schema
// violations and return an error.
func (d *Delegate) PutData(ch types.EngineChannelType, raw interface{}, opts handler.PutOptions) (handler.PutResult, error) {
	d.mu.RLock()
	def := d.defs[ch]
	submitter := d.submitter
	src := d.tsSource
	d.mu.RUnlock()

	dataType := inboundMapping[ch]
	if dataType == types.DataNone || def == nil || submitter == nil {
		prometheus.RecordFrameIngested(ch.String(), prometheus.StatusDropped)
		return handler.PutDropped, nil
	}

	bundle, err := databundle.New(def)
	if err != nil {
		prometheus.RecordFrameIngested(ch.String(), prometheus.StatusError)
		return handler.PutDropped, err
	}

	switch ch {
	case types.ChannelAudio:
		tensor, ok := raw.(*databundle.Tensor)
		if !ok {
			prometheus.RecordFrameIngested(ch.String(), prometheus.StatusError)
			return handler.PutDropped, fmt.Errorf("audio frame: %w: want *databundle.Tensor, got %T", databundle.ErrKindMismatch, raw)
		}
		// Mono frame contract: collapse singleton dims, then restore the
		// leading channel dimension.
		err = bundle.SetMainData(tensor.Squeeze().ExpandDim(0))
	case types.ChannelVideo:
		tensor, ok := raw.(*databundle.Tensor)
		if !ok {
			prometheus.RecordFrameIngested(ch.String(), prometheus.StatusError)
			return handler.PutDropped, fmt.Errorf("video frame: %w: want *databundle.Tensor, got %T", databundle.ErrKindMismatch, raw)
		}
		// Single image contract: prepend a frame-index dimension of one.
		err = bundle.SetMainData(tensor.ExpandDim(0))
	case types.ChannelText:
		text, ok := raw.(string)
		if !ok {
			prometheus.RecordFrameIngested(ch.String(), prometheus.StatusError)
			return handler.PutDropped, fmt.Errorf("text frame: %w: want string, got %T", databundle.ErrKindMismatch, raw)
		}
		bundle.AddMeta(types.MetaHumanTextEnd, true)
		bundle.AddMeta(types.MetaSpeechID, uuid.New().String())
		err = bundle.SetMainData(text)
	default:
		prometheus.RecordFrameIngested(ch.String(), prometheus.StatusDropped)
		return handler.PutDropped, nil
	}
	if err != nil {
		prometheus.RecordFrameIngested(ch.String(), prometheus.StatusError)
		return handler.PutDropped, err
	}

	ts := types.Timestamp{}
	if opts.Timestamp != nil {
		ts = *opts.Timestamp
	} else if src != nil {
		ts = src()
	}

	chatData := &types.ChatData{
		Source:    types.SourceClient,
		Type:      dataType,
		Data:      bundle,
		Timestamp: ts,
	}

	if err := submitter.Submit(chatData); err != nil {
		// Routing failures never crash the session: log and drop the item.
		logger.Warn("submit failed, dropping item",
			"session_id", d.sessionID, "channel", ch.String(), "error", err)
		prometheus.RecordFrameIngested(ch.String(), prometheus.StatusError)
		return handler.PutDropped, nil
	}
	prometheus.RecordFrameIngested(ch.String(), prometheus.StatusSubmitted)

	if opts.Loopback {
		d.Enqueue(chatData)
	}
	return handler.PutSubmitted, nil
}

// Enqueue places an item onto the outbound queue matching its channel.
// Items with no routable channel are ignored.
func (d *Delegate) Enqueue(data *types.ChatData) {
	ch := data.Type.ChannelType()
	q, ok := d.queues[ch]
	if !ok {
		return
	}
	q.put(data)
	prometheus.SetQueueDepth(d.sessionID, ch.String(), q.depth())
}

// EmitSignal forwards an out-of-band control notification to the signal
// bus. The delegate is a pass-through point, not a queue.
func (d *Delegate) EmitSignal(sig types.ChatSignal) {
	if sig.SessionID == "" {
		sig.SessionID = d.sessionID
	}
	if d.signals != nil {
		d.signals.Publish(sig)
	}
}

// ClearData drains all channel queues without processing, releasing pending
// references promptly. Used on session teardown.
func (d *Delegate) ClearData() {
	released := 0
	for _, q := range d.queues {
		released += q.clear()
	}
	prometheus.DropQueueDepth(d.sessionID)
	if released > 0 {
		logger.Debug("delegate queues drained", "session_id", d.sessionID, "released", released)
	}
}
