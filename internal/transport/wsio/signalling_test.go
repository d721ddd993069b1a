package wsio

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rapidaai/realtime-asr-gateway/internal/logging"
	"github.com/rapidaai/realtime-asr-gateway/internal/metrics"
	"github.com/rapidaai/realtime-asr-gateway/internal/resource"
	"github.com/rapidaai/realtime-asr-gateway/internal/session"
	"github.com/rapidaai/realtime-asr-gateway/internal/signalling"
	"github.com/rapidaai/realtime-asr-gateway/internal/token"
)

func testServer(t *testing.T, onOffer func(string, *Conn, string), onIce func(string, string)) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	resources := resource.New(4, time.Minute)
	signal := signalling.New(logging.NewNop(), resources, token.NoopValidator{}, "test-aud",
		map[string]string{}, []session.IceServer{{URLs: []string{"stun:stun.example.com:19302"}}}, 64, metrics.New())
	handler := NewHandler(logging.NewNop(), signal, onOffer, onIce)

	engine := gin.New()
	engine.GET("/ws", handler.ServeHTTP)
	srv := httptest.NewServer(engine)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	if query != "" {
		url += "?" + query
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHandler_AdmitsOnOffer(t *testing.T) {
	admitted := make(chan string, 1)
	srv := testServer(t, func(sessionID string, conn *Conn, sdp string) {
		admitted <- sessionID
	}, nil)

	conn := dial(t, srv, "session_id=client-chosen-1")
	require.NoError(t, conn.WriteJSON(Envelope{Type: MsgOffer, SDP: "v=0...", Message: "test-aud:user-1"}))

	select {
	case id := <-admitted:
		assert.NotEmpty(t, id)
	case <-time.After(time.Second):
		t.Fatal("offer was never admitted")
	}
}

func TestHandler_RejectsNonOfferFirstMessage(t *testing.T) {
	srv := testServer(t, func(string, *Conn, string) {}, nil)
	conn := dial(t, srv, "session_id=client-chosen-1")
	require.NoError(t, conn.WriteJSON(Envelope{Type: MsgIceCandidate, SessionID: "x"}))

	var reply Envelope
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, MsgError, reply.Type)
	assert.Equal(t, "transport", reply.Code)
}

// TestHandler_ConnectWithoutSessionIDClosesWithOneErrorFrame covers
// spec.md §6/§8 scenario 6: connecting without a session_id query
// parameter must yield exactly one error frame naming the missing
// query parameter, then the connection closes.
func TestHandler_ConnectWithoutSessionIDClosesWithOneErrorFrame(t *testing.T) {
	srv := testServer(t, func(string, *Conn, string) {}, nil)
	conn := dial(t, srv, "")

	var reply Envelope
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, MsgError, reply.Type)
	assert.Contains(t, reply.Message, "missing session_id query parameter")

	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}

func TestHandler_ConnectWithEmptySessionIDClosesWithOneErrorFrame(t *testing.T) {
	srv := testServer(t, func(string, *Conn, string) {}, nil)
	conn := dial(t, srv, "session_id=")

	var reply Envelope
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, MsgError, reply.Type)
	assert.Contains(t, reply.Message, "missing session_id query parameter")
}
