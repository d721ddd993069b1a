package asr

import (
	"fmt"

	"github.com/rapidaai/realtime-asr-gateway/internal/session"
)

// MockClient echoes frame counts as Partials and emits a synthetic
// Final on Finish — a test double for StreamingClient, grounded
// verbatim on original_source/asr/mock.rs.
type MockClient struct {
	flushInterval int
}

// NewMockClient builds a mock client; flushInterval mirrors the
// original's `streaming.max_pending_requests` cadence for the
// aggregated-partial flush (minimum 1).
func NewMockClient(flushInterval int) *MockClient {
	if flushInterval < 1 {
		flushInterval = 1
	}
	return &MockClient{flushInterval: flushInterval}
}

func (c *MockClient) StartSession(sessionID string) (*StreamingSession, error) {
	commandCh := make(chan audioCommand, 32)
	updateCh := make(chan session.TranscriptUpdate, 32)

	go func() {
		defer close(updateCh)
		accumulator := ""
		frameIndex := 0
		for cmd := range commandCh {
			if cmd.finish {
				summary := " no additional data"
				if accumulator != "" {
					summary = fmt.Sprintf(" with%s", accumulator)
				}
				updateCh <- session.TranscriptUpdate{
					Kind: session.Final,
					Text: fmt.Sprintf("session %s complete%s", sessionID, summary),
				}
				return
			}
			frameIndex++
			accumulator += fmt.Sprintf(" %d", len(cmd.frame))
			updateCh <- session.TranscriptUpdate{
				Kind:       session.Partial,
				Text:       fmt.Sprintf("session %s frame %d samples %d", sessionID, frameIndex, len(cmd.frame)),
				Confidence: 0.8,
			}
			if frameIndex%c.flushInterval == 0 {
				updateCh <- session.TranscriptUpdate{
					Kind:       session.Partial,
					Text:       fmt.Sprintf("session %s aggregated%s", sessionID, accumulator),
					Confidence: 0.9,
				}
				accumulator = ""
			}
		}
	}()

	return &StreamingSession{sessionID: sessionID, commandCh: commandCh, updateCh: updateCh}, nil
}
