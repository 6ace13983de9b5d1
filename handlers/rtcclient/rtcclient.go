// Package rtcclient is the client boundary handler: it terminates the
// WebRTC transport, feeds client frames into the session delegate, and pumps
// pipeline output back over the peer's data channels.
package rtcclient

import (
	"fmt"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/NimbusAI/avatarchat/config"
	"github.com/NimbusAI/avatarchat/databundle"
	"github.com/NimbusAI/avatarchat/handler"
	"github.com/NimbusAI/avatarchat/types"
)

// Name is the handler's registration name in configuration.
const Name = "rtc_client"

var configSchema = gojsonschema.NewGoLoader(map[string]interface{}{
	"type": "object",
})

// Handler terminates the WebRTC transport boundary for every session. One
// Handler instance serves the whole process; per-session state lives in the
// contexts it creates.
type Handler struct {
	conn config.ConnectionConfig

	micDef    *databundle.Definition
	cameraDef *databundle.Definition
	humanDef  *databundle.Definition

	avatarAudioDef *databundle.Definition
	avatarVideoDef *databundle.Definition
	avatarTextDef  *databundle.Definition
}

// New creates the RTC client boundary handler.
func New() *Handler { return &Handler{} }

// HandlerInfo declares the handler's static capabilities.
func (h *Handler) HandlerInfo() handler.Info {
	return handler.Info{Name: Name, ConfigSchema: configSchema, NeedsDelegate: true}
}

// Load derives the channel bundle definitions from the connection
// configuration. Video frames travel as [frame, height, width, rgb] with a
// fixed three-byte pixel.
func (h *Handler) Load(engineCfg *config.EngineConfig, _ config.HandlerConfig) error {
	h.conn = engineCfg.Connection

	frameShape := []databundle.Dim{
		databundle.Variable(), // frame
		databundle.Variable(), // height
		databundle.Variable(), // width
		databundle.Fixed(3),   // rgb
	}

	h.micDef = databundle.MustLockedDefinition(
		databundle.NewAudioEntry("mic_audio", 1, h.conn.InputSampleRate))
	h.cameraDef = databundle.MustLockedDefinition(
		databundle.NewFramedEntry("camera_video", frameShape, 3, h.conn.FrameRate))
	h.humanDef = databundle.MustLockedDefinition(
		databundle.NewTextEntry("human_text"))

	h.avatarAudioDef = databundle.MustLockedDefinition(
		databundle.NewAudioEntry("avatar_audio", 1, h.conn.OutputSampleRate))
	h.avatarVideoDef = databundle.MustLockedDefinition(
		databundle.NewFramedEntry("avatar_video", frameShape, 3, h.conn.FrameRate))
	h.avatarTextDef = databundle.MustLockedDefinition(
		databundle.NewTextEntry("avatar_text"))
	return nil
}

// CreateContext builds the per-session transport state. The peer connection
// itself attaches later, when signaling completes.
func (h *Handler) CreateContext(sc handler.SessionContext, _ config.HandlerConfig) (handler.Context, error) {
	return &rtcContext{
		BaseContext: handler.BaseContext{ID: sc.SessionID()},
		frameRate:   h.conn.FrameRate,
	}, nil
}

// SetupSessionDelegate registers the inbound channel definitions and keeps
// the delegate for the peer's ingest and pump paths.
func (h *Handler) SetupSessionDelegate(_ handler.SessionContext, hc handler.Context, delegate handler.SessionDelegate) error {
	rc, ok := hc.(*rtcContext)
	if !ok {
		return fmt.Errorf("unexpected context type %T", hc)
	}
	if reg, ok := delegate.(interface {
		SetInputDefinition(types.EngineChannelType, *databundle.Definition)
	}); ok {
		reg.SetInputDefinition(types.ChannelAudio, h.micDef)
		reg.SetInputDefinition(types.ChannelVideo, h.cameraDef)
		reg.SetInputDefinition(types.ChannelText, h.humanDef)
	}
	rc.delegate = delegate
	return nil
}

// StartContext is a no-op: traffic starts when the peer attaches.
func (h *Handler) StartContext(_ handler.SessionContext, _ handler.Context) error { return nil }

// HandlerDetail declares the boundary's traffic: it consumes everything
// avatar-attributed plus the human text echo, and produces the
// client-attributed types.
func (h *Handler) HandlerDetail(_ handler.SessionContext, _ handler.Context) handler.Detail {
	return handler.Detail{
		Inputs: map[types.ChatDataType]handler.DataInfo{
			types.DataAvatarAudio: {Type: types.DataAvatarAudio, Definition: h.avatarAudioDef},
			types.DataAvatarVideo: {Type: types.DataAvatarVideo, Definition: h.avatarVideoDef},
			types.DataAvatarText:  {Type: types.DataAvatarText, Definition: h.avatarTextDef},
			types.DataHumanText:   {Type: types.DataHumanText, Definition: h.humanDef},
		},
		Outputs: map[types.ChatDataType]handler.DataInfo{
			types.DataMicAudio:    {Type: types.DataMicAudio, Definition: h.micDef},
			types.DataCameraVideo: {Type: types.DataCameraVideo, Definition: h.cameraDef},
			types.DataHumanText:   {Type: types.DataHumanText, Definition: h.humanDef},
		},
	}
}

// Handle surfaces pipeline output to the transport: the item lands on the
// outbound queue matching its channel, where the peer's pump goroutines pick
// it up.
func (h *Handler) Handle(hc handler.Context, in *types.ChatData, _ map[types.ChatDataType]handler.DataInfo) error {
	rc, ok := hc.(*rtcContext)
	if !ok {
		return fmt.Errorf("unexpected context type %T", hc)
	}
	if rc.delegate == nil {
		return fmt.Errorf("session %s: delegate not wired", rc.SessionID())
	}
	rc.delegate.Enqueue(in)
	return nil
}

// DestroyContext closes the attached peer, if any. Safe to call repeatedly.
func (h *Handler) DestroyContext(hc handler.Context) {
	if rc, ok := hc.(*rtcContext); ok {
		rc.detachPeer()
	}
}

// rtcContext is the per-session transport state.
type rtcContext struct {
	handler.BaseContext

	delegate  handler.SessionDelegate
	frameRate int

	mu   sync.Mutex
	peer *peer
}

// attachPeer hands the signaled peer connection to the context. An earlier
// peer, if any, is closed first.
func (c *rtcContext) attachPeer(p *peer) {
	c.mu.Lock()
	old := c.peer
	c.peer = p
	c.mu.Unlock()
	if old != nil {
		old.close()
	}
}

// detachPeer closes and forgets the attached peer.
func (c *rtcContext) detachPeer() {
	c.mu.Lock()
	p := c.peer
	c.peer = nil
	c.mu.Unlock()
	if p != nil {
		p.close()
	}
}
