// Package asr wraps an injected streaming-ASR client behind a
// per-session command/update channel pair, grounded on
// original_source/asr/{client.rs,mock.rs,grpc_client.rs,server.rs}.
package asr

import (
	"github.com/rapidaai/realtime-asr-gateway/internal/gatewayerr"
	"github.com/rapidaai/realtime-asr-gateway/internal/session"
)

// audioCommand is the internal command sent to a streaming session's
// worker: either a frame of target-rate samples or a finish signal.
type audioCommand struct {
	frame  []float32
	finish bool
}

// StreamingSession is a handle to one in-flight backend ASR stream.
type StreamingSession struct {
	sessionID string
	commandCh chan audioCommand
	updateCh  <-chan session.TranscriptUpdate
}

// SessionID returns the bound session's id.
func (s *StreamingSession) SessionID() string { return s.sessionID }

// SendAudio forwards a frame on the bounded command channel
// (capacity 32 per spec.md §4.4/§5). A full channel blocks the
// caller; a closed channel (backend crashed) surfaces as AsrProcessing.
func (s *StreamingSession) SendAudio(frame []float32) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = gatewayerr.New(gatewayerr.AsrProcessing, "audio command channel closed")
		}
	}()
	s.commandCh <- audioCommand{frame: frame}
	return nil
}

// Finish sends a Finish command; the backend is expected to emit one
// Final and close.
func (s *StreamingSession) Finish() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = gatewayerr.New(gatewayerr.AsrProcessing, "audio command channel closed")
		}
	}()
	s.commandCh <- audioCommand{finish: true}
	return nil
}

// NextUpdate awaits the next update from this session. Returns
// (update, true) normally, or (zero, false) when the session closed.
func (s *StreamingSession) NextUpdate() (session.TranscriptUpdate, bool) {
	u, ok := <-s.updateCh
	return u, ok
}

// StreamingClient is the abstract, injected ASR backend capability.
// Two concrete realisations exist: MockClient (tests) and
// rpc.Adapter (a real gRPC streaming backend).
type StreamingClient interface {
	StartSession(sessionID string) (*StreamingSession, error)
}

// NewStreamingSession lets an external package (e.g. asr/rpc) build a
// StreamingSession around its own command producer/update consumer
// goroutines without reaching into unexported fields directly.
func NewStreamingSession(sessionID string, capacity int, commandPump func(frame []float32, finish bool) bool) (*StreamingSession, chan<- session.TranscriptUpdate) {
	commandCh := make(chan audioCommand, capacity)
	updateCh := make(chan session.TranscriptUpdate, capacity)
	go func() {
		for cmd := range commandCh {
			if !commandPump(cmd.frame, cmd.finish) {
				return
			}
			if cmd.finish {
				return
			}
		}
	}()
	return &StreamingSession{sessionID: sessionID, commandCh: commandCh, updateCh: updateCh}, updateCh
}
