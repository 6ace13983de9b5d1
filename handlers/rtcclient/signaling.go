package rtcclient

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"

	"github.com/NimbusAI/avatarchat/engine"
	"github.com/NimbusAI/avatarchat/handler"
	"github.com/NimbusAI/avatarchat/logger"
	"github.com/NimbusAI/avatarchat/types"
)

// Mount points of the transport endpoints.
const (
	// SignalingPath is the websocket offer/answer exchange.
	SignalingPath = "/session/offer"

	// ConfigPath serves the connection parameters clients need before
	// signaling.
	ConfigPath = "/session/config"
)

// signalMessage is the websocket signaling envelope, both directions.
type signalMessage struct {
	Type      string                   `json:"type"` // offer, answer, candidate, error
	SDP       string                   `json:"sdp,omitempty"`
	SessionID string                   `json:"session_id,omitempty"`
	Candidate *webrtc.ICECandidateInit `json:"candidate,omitempty"`
	Error     string                   `json:"error,omitempty"`
}

// wsConn serializes writes: the answer, trickled candidates and errors race
// from different goroutines.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) writeJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// NewConfigEndpoint serves the negotiated RTC configuration so clients can
// build their peer with the same ICE servers. A deployment without a relay
// serves a null configuration, meaning direct connection.
func NewConfigEndpoint(rtcConfig *webrtc.Configuration) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		resp := map[string]interface{}{"rtc_configuration": nil}
		if rtcConfig != nil {
			resp["rtc_configuration"] = map[string]interface{}{
				"iceServers": rtcConfig.ICEServers,
			}
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			logger.Warn("encode rtc configuration failed", "error", err)
		}
	})
}

// Signaling exchanges the WebRTC offer/answer and ICE candidates over a
// websocket, starting one engine session per connection. Mount it on the
// HTTP server at SignalingPath.
type Signaling struct {
	engine    *engine.Engine
	handler   *Handler
	rtcConfig *webrtc.Configuration
	upgrader  websocket.Upgrader
}

// NewSignaling creates the signaling endpoint. rtcConfig is the negotiated
// relay configuration; nil means direct connection.
func NewSignaling(e *engine.Engine, h *Handler, rtcConfig *webrtc.Configuration) *Signaling {
	return &Signaling{
		engine:    e,
		handler:   h,
		rtcConfig: rtcConfig,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Browser clients connect from arbitrary origins; session
			// isolation does not rely on the origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// watchSignals reacts to the session's out-of-band notifications: a stop
// closes the signaling transport so the candidate loop exits, an interrupt
// drops queued output so stale frames never reach the client. The returned
// function removes both subscriptions.
func (s *Signaling) watchSignals(id string, delegate handler.SessionDelegate, closeConn func()) func() {
	bus := s.engine.Signals()
	unsubStop := bus.Subscribe(types.SignalStop, func(sig types.ChatSignal) {
		if sig.SessionID == id {
			closeConn()
		}
	})
	unsubInterrupt := bus.Subscribe(types.SignalInterrupt, func(sig types.ChatSignal) {
		if sig.SessionID == id {
			delegate.ClearData()
		}
	})
	return func() {
		unsubStop()
		unsubInterrupt()
	}
}

func (s *Signaling) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	conn := &wsConn{conn: raw}
	defer raw.Close()

	var offer signalMessage
	if err := raw.ReadJSON(&offer); err != nil || offer.Type != "offer" || offer.SDP == "" {
		_ = conn.writeJSON(signalMessage{Type: "error", Error: "expected offer"})
		return
	}

	sess, err := s.engine.StartSession()
	if err != nil {
		if errors.Is(err, engine.ErrConcurrencyLimit) {
			_ = conn.writeJSON(signalMessage{Type: "error", Error: "session limit reached"})
		} else {
			logger.Error("start session failed", "error", err)
			_ = conn.writeJSON(signalMessage{Type: "error", Error: "service unavailable"})
		}
		return
	}
	id := sess.ID()
	stop := func(reason string) {
		if err := s.engine.StopSession(id, reason); err != nil && !errors.Is(err, engine.ErrSessionNotFound) {
			logger.Warn("stop session failed", "session_id", id, "error", err)
		}
	}

	rec, ok := sess.Record(Name)
	if !ok {
		logger.Error("rtc handler missing from session", "session_id", id)
		_ = conn.writeJSON(signalMessage{Type: "error", Error: "service unavailable"})
		stop("misconfigured")
		return
	}
	rc := rec.Context.(*rtcContext)

	p, err := newPeer(id, s.rtcConfig, rc.delegate, rc.frameRate)
	if err != nil {
		logger.Error("create peer failed", "session_id", id, "error", err)
		_ = conn.writeJSON(signalMessage{Type: "error", Error: "service unavailable"})
		stop("peer_failed")
		return
	}
	rc.attachPeer(p)
	defer s.watchSignals(id, rc.delegate, func() { _ = raw.Close() })()

	p.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		init := c.ToJSON()
		if err := conn.writeJSON(signalMessage{Type: "candidate", Candidate: &init}); err != nil {
			logger.Debug("trickle candidate write failed", "session_id", id, "error", err)
		}
	})
	p.pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		logger.Debug("peer state", "session_id", id, "state", state.String())
		switch state {
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			stop("peer_disconnected")
		}
	})

	answer, err := p.answer(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: offer.SDP})
	if err != nil {
		logger.Warn("answer failed", "session_id", id, "error", err)
		_ = conn.writeJSON(signalMessage{Type: "error", Error: "negotiation failed"})
		stop("negotiation_failed")
		return
	}
	if err := conn.writeJSON(signalMessage{Type: "answer", SDP: answer.SDP, SessionID: id}); err != nil {
		stop("signaling_closed")
		return
	}

	// Candidate exchange runs until the client hangs up. The websocket
	// closing ends the session; the media path has no life of its own
	// beyond it.
	for {
		var msg signalMessage
		if err := raw.ReadJSON(&msg); err != nil {
			stop("signaling_closed")
			return
		}
		if msg.Type == "candidate" && msg.Candidate != nil {
			if err := p.addCandidate(*msg.Candidate); err != nil {
				logger.Debug("add candidate failed", "session_id", id, "error", err)
			}
		}
	}
}
