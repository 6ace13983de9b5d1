package rtcclient

import (
	"context"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
	"golang.org/x/time/rate"

	"github.com/NimbusAI/avatarchat/handler"
	"github.com/NimbusAI/avatarchat/logger"
	"github.com/NimbusAI/avatarchat/types"
)

// channelLabels maps data channel labels to engine channels. The client
// opens one channel per lane.
var channelLabels = map[string]types.EngineChannelType{
	"audio": types.ChannelAudio,
	"video": types.ChannelVideo,
	"text":  types.ChannelText,
}

// peer owns one WebRTC peer connection: it ingests data channel messages
// into the session delegate and pumps the outbound queues back to the
// client. Outbound video is paced to the configured frame rate.
type peer struct {
	sessionID string
	pc        *webrtc.PeerConnection
	delegate  handler.SessionDelegate
	frameRate int

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// newPeer creates a peer connection using the negotiated relay
// configuration. A nil rtcConfig means direct connection, no relay.
func newPeer(sessionID string, rtcConfig *webrtc.Configuration, delegate handler.SessionDelegate, frameRate int) (*peer, error) {
	cfg := webrtc.Configuration{}
	if rtcConfig != nil {
		cfg = *rtcConfig
	}

	api := webrtc.NewAPI(webrtc.WithSettingEngine(webrtc.SettingEngine{}))
	pc, err := api.NewPeerConnection(cfg)
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &peer{
		sessionID: sessionID,
		pc:        pc,
		delegate:  delegate,
		frameRate: frameRate,
		ctx:       ctx,
		cancel:    cancel,
	}
	pc.OnDataChannel(p.onDataChannel)
	return p, nil
}

// answer applies the client's offer and produces the local answer for
// trickle-ICE signaling: candidates follow separately.
func (p *peer) answer(offer webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	if err := p.pc.SetRemoteDescription(offer); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("set remote description: %w", err)
	}
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("create answer: %w", err)
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("set local description: %w", err)
	}
	return answer, nil
}

// addCandidate applies one remote ICE candidate.
func (p *peer) addCandidate(c webrtc.ICECandidateInit) error {
	return p.pc.AddICECandidate(c)
}

// close tears the connection down and waits for the pumps to drain.
func (p *peer) close() {
	p.closeOnce.Do(func() {
		p.cancel()
		if err := p.pc.Close(); err != nil {
			logger.Debug("peer close", "session_id", p.sessionID, "error", err)
		}
		p.wg.Wait()
	})
}

func (p *peer) onDataChannel(dc *webrtc.DataChannel) {
	ch, ok := channelLabels[dc.Label()]
	if !ok {
		logger.Warn("unknown data channel label, ignoring",
			"session_id", p.sessionID, "label", dc.Label())
		return
	}

	dc.OnOpen(func() {
		logger.Debug("data channel open", "session_id", p.sessionID, "channel", ch.String())
		p.wg.Add(1)
		go p.pump(ch, dc)
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		p.ingest(ch, msg)
	})
}

// ingest converts one data channel message into a raw frame and hands it to
// the delegate. Malformed frames are logged and dropped; the connection
// stays up.
func (p *peer) ingest(ch types.EngineChannelType, msg webrtc.DataChannelMessage) {
	var raw interface{}
	switch ch {
	case types.ChannelAudio:
		tensor, err := decodePCM(msg.Data)
		if err != nil {
			logger.Warn("bad audio frame", "session_id", p.sessionID, "error", err)
			return
		}
		raw = tensor
	case types.ChannelVideo:
		tensor, err := decodeVideoFrame(msg.Data)
		if err != nil {
			logger.Warn("bad video frame", "session_id", p.sessionID, "error", err)
			return
		}
		raw = tensor
	case types.ChannelText:
		raw = string(msg.Data)
	default:
		return
	}

	if _, err := p.delegate.PutData(ch, raw, handler.PutOptions{}); err != nil {
		logger.Warn("frame rejected", "session_id", p.sessionID,
			"channel", ch.String(), "error", err)
	}
}

// pump forwards the outbound queue of one channel over its data channel
// until the peer closes.
func (p *peer) pump(ch types.EngineChannelType, dc *webrtc.DataChannel) {
	defer p.wg.Done()

	var limiter *rate.Limiter
	if ch == types.ChannelVideo && p.frameRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(p.frameRate), 1)
	}

	for {
		data, err := p.delegate.GetData(p.ctx, ch, 0)
		if err != nil {
			return
		}
		if data == nil || data.Data == nil {
			continue
		}

		payload, err := p.encode(ch, data)
		if err != nil {
			logger.Warn("encode outbound frame failed", "session_id", p.sessionID,
				"channel", ch.String(), "error", err)
			continue
		}
		if limiter != nil {
			if err := limiter.Wait(p.ctx); err != nil {
				return
			}
		}
		if err := dc.Send(payload); err != nil {
			logger.Debug("data channel send failed", "session_id", p.sessionID,
				"channel", ch.String(), "error", err)
			return
		}
	}
}

func (p *peer) encode(ch types.EngineChannelType, data *types.ChatData) ([]byte, error) {
	switch ch {
	case types.ChannelAudio:
		t := data.Data.MainTensor()
		if t == nil {
			return nil, fmt.Errorf("audio item without tensor payload")
		}
		return encodePCM(t), nil
	case types.ChannelVideo:
		t := data.Data.MainTensor()
		if t == nil {
			return nil, fmt.Errorf("video item without tensor payload")
		}
		return encodeVideoFrame(t)
	case types.ChannelText:
		return []byte(data.Data.MainText()), nil
	}
	return nil, fmt.Errorf("unroutable channel %s", ch)
}
