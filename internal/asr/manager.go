package asr

import (
	"sync"

	"github.com/rapidaai/realtime-asr-gateway/internal/gatewayerr"
	"github.com/rapidaai/realtime-asr-gateway/internal/logging"
	"github.com/rapidaai/realtime-asr-gateway/internal/session"
)

// Manager wraps an injected StreamingClient behind an id->session map
// guarded by one RWMutex (spec.md §4.4).
type Manager struct {
	logger logging.Logger
	client StreamingClient

	mu       sync.RWMutex
	sessions map[string]*StreamingSession
}

// New builds a Manager delegating to client.
func New(logger logging.Logger, client StreamingClient) *Manager {
	return &Manager{
		logger:   logger,
		client:   client,
		sessions: make(map[string]*StreamingSession),
	}
}

// StartSession creates an underlying streaming session and inserts it
// into the map.
func (m *Manager) StartSession(id string) error {
	sess, err := m.client.StartSession(id)
	if err != nil {
		return gatewayerr.Wrap(gatewayerr.AsrProcessing, "failed to start backend stream", err)
	}
	m.mu.Lock()
	m.sessions[id] = sess
	m.mu.Unlock()
	return nil
}

func (m *Manager) get(id string) (*StreamingSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, gatewayerr.New(gatewayerr.SessionNotFound, "no backend stream for session")
	}
	return s, nil
}

// SendAudio looks up the session and forwards the frame on its
// bounded command channel.
func (m *Manager) SendAudio(id string, frame []float32) error {
	s, err := m.get(id)
	if err != nil {
		return err
	}
	return s.SendAudio(frame)
}

// FinishSession sends a Finish command to the backend stream.
func (m *Manager) FinishSession(id string) error {
	s, err := m.get(id)
	if err != nil {
		return err
	}
	return s.Finish()
}

// PollUpdate awaits the next update from this session. Returns
// (update, true, nil) normally, (zero, false, nil) when the session
// closed normally, or an error if the session is unknown.
func (m *Manager) PollUpdate(id string) (session.TranscriptUpdate, bool, error) {
	s, err := m.get(id)
	if err != nil {
		return session.TranscriptUpdate{}, false, err
	}
	u, ok := s.NextUpdate()
	return u, ok, nil
}

// DropSession removes a session from the map; outstanding receivers
// observe channel closure through NextUpdate's ok=false return once
// the backend's own worker goroutine exits.
func (m *Manager) DropSession(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}
