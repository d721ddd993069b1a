// Package wsio implements the WebSocket signalling channel: SDP/ICE
// exchange plus partial/final transcript delivery, grounded on
// iamprashant-voice-ai's webrtc.go upgrade pattern and spec.md §4.1/§6.
package wsio

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/rapidaai/realtime-asr-gateway/internal/gatewayerr"
	"github.com/rapidaai/realtime-asr-gateway/internal/logging"
	"github.com/rapidaai/realtime-asr-gateway/internal/session"
	"github.com/rapidaai/realtime-asr-gateway/internal/signalling"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// MessageType tags the WS signalling envelope's variant, mirroring
// spec.md §4.1's SignallingMessage union.
type MessageType string

const (
	MsgOffer            MessageType = "offer"
	MsgAnswer           MessageType = "answer"
	MsgIceCandidate     MessageType = "ice_candidate"
	MsgPartialTranscript MessageType = "partial_transcript"
	MsgFinalTranscript  MessageType = "final_transcript"
	MsgError            MessageType = "error"
)

// Envelope is the single wire shape for every signalling message in
// either direction.
type Envelope struct {
	Type       MessageType `json:"type"`
	SessionID  string      `json:"session_id,omitempty"`
	SDP        string      `json:"sdp,omitempty"`
	Candidate  string      `json:"candidate,omitempty"`
	Text       string      `json:"text,omitempty"`
	Confidence float64     `json:"confidence,omitempty"`
	Code       string      `json:"code,omitempty"`
	Message    string      `json:"message,omitempty"`
}

// Conn wraps one upgraded WebSocket connection with a write mutex,
// since gorilla/websocket forbids concurrent writers.
type Conn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
}

func newConn(ws *websocket.Conn) *Conn {
	return &Conn{ws: ws}
}

func (c *Conn) writeJSON(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteJSON(v)
}

// SendPartial implements orchestrator.SignallingSink.
func (c *Conn) SendPartial(sessionID, text string, confidence float64) {
	_ = c.writeJSON(Envelope{Type: MsgPartialTranscript, SessionID: sessionID, Text: text, Confidence: confidence})
}

// SendFinal implements orchestrator.SignallingSink.
func (c *Conn) SendFinal(sessionID, text string) {
	_ = c.writeJSON(Envelope{Type: MsgFinalTranscript, SessionID: sessionID, Text: text})
}

// SendError implements orchestrator.SignallingSink.
func (c *Conn) SendError(sessionID string, err *gatewayerr.Error) {
	_ = c.writeJSON(Envelope{Type: MsgError, SessionID: sessionID, Code: string(err.Code), Message: err.Message})
}

// SendAnswer/SendIceCandidate relay WebRTC SDP negotiation
// messages, kept on the same envelope shape for symmetry with
// incoming messages.
func (c *Conn) SendAnswer(sessionID, sdp string) error {
	return c.writeJSON(Envelope{Type: MsgAnswer, SessionID: sessionID, SDP: sdp})
}

func (c *Conn) SendIceCandidate(sessionID, candidate string) error {
	return c.writeJSON(Envelope{Type: MsgIceCandidate, SessionID: sessionID, Candidate: candidate})
}

func (c *Conn) Close() error {
	return c.ws.Close()
}

// sendErrorAndClose writes a single error envelope then closes,
// grounded on webrtc.go's sendErrorAndClose helper.
func sendErrorAndClose(ws *websocket.Conn, code gatewayerr.Code, message string) {
	envelope := Envelope{Type: MsgError, Code: string(code), Message: message}
	data, _ := json.Marshal(envelope)
	_ = ws.WriteMessage(websocket.TextMessage, data)
	_ = ws.Close()
}

// Handler wires the signalling service and a per-session message
// dispatcher together behind a single gin route.
type Handler struct {
	logger   logging.Logger
	signal   *signalling.Service
	onOffer  func(sessionID string, conn *Conn, sdp string)
	onIce    func(sessionID string, candidate string)
}

// NewHandler builds a Handler. onOffer is invoked once the session is
// admitted and the client's SDP offer has arrived, to let the caller
// wire up the WebRTC/audio-ingest side; onIce forwards remote ICE
// candidates as they stream in.
func NewHandler(logger logging.Logger, signal *signalling.Service,
	onOffer func(sessionID string, conn *Conn, sdp string),
	onIce func(sessionID string, candidate string)) *Handler {
	return &Handler{logger: logger, signal: signal, onOffer: onOffer, onIce: onIce}
}

// ServeHTTP upgrades the connection, enforces spec.md §6's connect
// contract (`ws://host:8081/ws?session_id=<id>`: a missing or empty
// session_id query parameter elicits one error frame then close,
// matching §8 scenario 6 and original_source's extract_session_id /
// handle_ws_connection), then admits a session from the first message
// received.
func (h *Handler) ServeHTTP(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warnw("websocket upgrade failed", "error", err)
		return
	}

	if c.Request.URL.Query().Get("session_id") == "" {
		sendErrorAndClose(ws, gatewayerr.Transport, "missing session_id query parameter")
		return
	}

	var env Envelope
	if err := ws.ReadJSON(&env); err != nil {
		sendErrorAndClose(ws, gatewayerr.Transport, "malformed signalling message")
		return
	}
	if env.Type != MsgOffer || env.SDP == "" {
		sendErrorAndClose(ws, gatewayerr.Transport, "expected offer as first message")
		return
	}

	req := signalling.Request{
		Client:    session.ClientDescriptor{Type: session.ClientBrowser, Name: "generic", Version: "0.0.0"},
		AuthToken: env.Message,
	}
	resp, err := h.signal.StartSession(req)
	if err != nil {
		if ge, ok := gatewayerr.As(err); ok {
			sendErrorAndClose(ws, ge.Code, ge.Message)
			return
		}
		sendErrorAndClose(ws, gatewayerr.Internal, "admission failed")
		return
	}

	conn := newConn(ws)
	h.onOffer(resp.SessionID, conn, env.SDP)

	for {
		var msg Envelope
		if err := ws.ReadJSON(&msg); err != nil {
			_ = h.signal.EndSession(resp.SessionID)
			return
		}
		switch msg.Type {
		case MsgIceCandidate:
			if h.onIce != nil {
				h.onIce(msg.SessionID, msg.Candidate)
			}
		default:
			h.logger.Debugw("unhandled signalling message", "type", msg.Type, "session_id", msg.SessionID)
		}
	}
}
