// Package resource owns the active-session map and enforces the
// configured concurrency cap.
package resource

import (
	"sync"
	"time"

	"github.com/rapidaai/realtime-asr-gateway/internal/gatewayerr"
	"github.com/rapidaai/realtime-asr-gateway/internal/session"
)

// Manager guards the active-session map behind a single RWMutex.
// Write-side sweeps are O(active_sessions), acceptable since the cap
// is modest (spec.md §4.6).
type Manager struct {
	mu             sync.RWMutex
	sessions       map[string]*session.Session
	maxConcurrent  int
	sessionTimeout time.Duration
	now            func() time.Time
}

// New builds a Manager with the given admission cap and idle timeout.
func New(maxConcurrent int, sessionTimeout time.Duration) *Manager {
	return &Manager{
		sessions:       make(map[string]*session.Session),
		maxConcurrent:  maxConcurrent,
		sessionTimeout: sessionTimeout,
		now:            time.Now,
	}
}

// sweepLocked removes sessions whose heartbeat is older than the
// configured timeout. Caller must hold mu for writing.
func (m *Manager) sweepLocked() {
	cutoff := m.now().Add(-m.sessionTimeout)
	for id, s := range m.sessions {
		if s.LastHeartbeat().Before(cutoff) {
			delete(m.sessions, id)
		}
	}
}

// TryAllocate sweeps stale sessions, checks the remaining count
// against the cap, and inserts s if there's room. Returns
// ResourceLimitExceeded if the cap is reached after the sweep.
func (m *Manager) TryAllocate(s *session.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepLocked()
	if len(m.sessions) >= m.maxConcurrent {
		return gatewayerr.New(gatewayerr.ResourceLimitExceeded, "at capacity")
	}
	m.sessions[s.ID] = s
	return nil
}

// Get looks up a session by id.
func (m *Manager) Get(id string) (*session.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, gatewayerr.New(gatewayerr.SessionNotFound, "unknown session")
	}
	return s, nil
}

// Heartbeat updates a session's last-heartbeat to now.
func (m *Manager) Heartbeat(id string) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	s.Touch(m.now())
	return nil
}

// End removes a session. Idempotence is not required: a second call
// fails with SessionNotFound.
func (m *Manager) End(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return gatewayerr.New(gatewayerr.SessionNotFound, "unknown session")
	}
	delete(m.sessions, id)
	return nil
}

// ActiveSessions returns the current active-session count.
func (m *Manager) ActiveSessions() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep runs the stale-session sweep outside of an allocation
// attempt; safe to call on a timer per spec.md §4.6.
func (m *Manager) Sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepLocked()
}
