package resource

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rapidaai/realtime-asr-gateway/internal/gatewayerr"
	"github.com/rapidaai/realtime-asr-gateway/internal/session"
)

func newTestSession(id string, now time.Time) *session.Session {
	return session.New(id, session.ClientDescriptor{Type: session.ClientBrowser, Name: "chrome", Version: "120.0.0"}, "user-1", 64, now)
}

func TestManager_TryAllocate_RespectsCap(t *testing.T) {
	m := New(2, time.Minute)
	now := time.Now()

	require.NoError(t, m.TryAllocate(newTestSession("a", now)))
	require.NoError(t, m.TryAllocate(newTestSession("b", now)))

	err := m.TryAllocate(newTestSession("c", now))
	require.Error(t, err)
	ge, ok := gatewayerr.As(err)
	require.True(t, ok)
	assert.Equal(t, gatewayerr.ResourceLimitExceeded, ge.Code)
	assert.Equal(t, 2, m.ActiveSessions())
}

func TestManager_SweepEvictsStaleBeforeAdmission(t *testing.T) {
	m := New(1, time.Second)
	base := time.Now()
	m.now = func() time.Time { return base }

	require.NoError(t, m.TryAllocate(newTestSession("stale", base)))

	m.now = func() time.Time { return base.Add(2 * time.Second) }
	require.NoError(t, m.TryAllocate(newTestSession("fresh", base.Add(2*time.Second))))

	assert.Equal(t, 1, m.ActiveSessions())
	_, err := m.Get("stale")
	require.Error(t, err)
	_, err = m.Get("fresh")
	require.NoError(t, err)
}

func TestManager_Heartbeat_UnknownSessionFails(t *testing.T) {
	m := New(4, time.Minute)
	err := m.Heartbeat("missing")
	require.Error(t, err)
	ge, ok := gatewayerr.As(err)
	require.True(t, ok)
	assert.Equal(t, gatewayerr.SessionNotFound, ge.Code)
}

func TestManager_End_RemovesSession(t *testing.T) {
	m := New(4, time.Minute)
	now := time.Now()
	require.NoError(t, m.TryAllocate(newTestSession("a", now)))
	require.NoError(t, m.End("a"))
	assert.Equal(t, 0, m.ActiveSessions())

	err := m.End("a")
	require.Error(t, err)
}
