package signalling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rapidaai/realtime-asr-gateway/internal/gatewayerr"
	"github.com/rapidaai/realtime-asr-gateway/internal/logging"
	"github.com/rapidaai/realtime-asr-gateway/internal/metrics"
	"github.com/rapidaai/realtime-asr-gateway/internal/resource"
	"github.com/rapidaai/realtime-asr-gateway/internal/session"
	"github.com/rapidaai/realtime-asr-gateway/internal/token"
)

func newService(maxSessions int) *Service {
	return newServiceWithMetrics(maxSessions, metrics.New())
}

func newServiceWithMetrics(maxSessions int, reg *metrics.Registry) *Service {
	resources := resource.New(maxSessions, time.Minute)
	minVersions := map[string]string{"browser/chrome": "110.0.0"}
	return New(logging.NewNop(), resources, token.NoopValidator{}, "test-aud", minVersions, nil, 64, reg)
}

func TestStartSession_RejectsOldClientVersion(t *testing.T) {
	s := newService(4)
	_, err := s.StartSession(Request{
		Client:    session.ClientDescriptor{Type: session.ClientBrowser, Name: "chrome", Version: "100.0.0"},
		AuthToken: "test-aud:user-1",
	})
	require.Error(t, err)
	ge, ok := gatewayerr.As(err)
	require.True(t, ok)
	assert.Equal(t, gatewayerr.ClientNotSupported, ge.Code)
}

func TestStartSession_RejectsBadToken(t *testing.T) {
	s := newService(4)
	_, err := s.StartSession(Request{
		Client:    session.ClientDescriptor{Type: session.ClientBrowser, Name: "chrome", Version: "120.0.0"},
		AuthToken: "wrong-aud:user-1",
	})
	require.Error(t, err)
	ge, ok := gatewayerr.As(err)
	require.True(t, ok)
	assert.Equal(t, gatewayerr.Authentication, ge.Code)
}

func TestStartSession_AdmitsAndVendsIceServers(t *testing.T) {
	s := newService(4)
	s.UpdateIceServers([]session.IceServer{{URLs: []string{"stun:stun.example.com:19302"}}})

	resp, err := s.StartSession(Request{
		Client:    session.ClientDescriptor{Type: session.ClientBrowser, Name: "chrome", Version: "120.0.0"},
		AuthToken: "test-aud:user-1",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.SessionID)
	assert.Len(t, resp.IceServers, 1)
	assert.Equal(t, 64, resp.MaxBitrateKbps)
	assert.Equal(t, 1, s.ActiveSessions())
}

func TestStartSession_RejectsAtCapacity(t *testing.T) {
	s := newService(1)
	_, err := s.StartSession(Request{
		Client:    session.ClientDescriptor{Type: session.ClientBrowser, Name: "chrome", Version: "120.0.0"},
		AuthToken: "test-aud:user-1",
	})
	require.NoError(t, err)

	_, err = s.StartSession(Request{
		Client:    session.ClientDescriptor{Type: session.ClientBrowser, Name: "chrome", Version: "120.0.0"},
		AuthToken: "test-aud:user-2",
	})
	require.Error(t, err)
	ge, ok := gatewayerr.As(err)
	require.True(t, ok)
	assert.Equal(t, gatewayerr.ResourceLimitExceeded, ge.Code)
}

func TestStartSession_RecordsAdmissionAndRejectionCounters(t *testing.T) {
	reg := metrics.New()
	s := newServiceWithMetrics(1, reg)

	_, err := s.StartSession(Request{
		Client:    session.ClientDescriptor{Type: session.ClientBrowser, Name: "chrome", Version: "120.0.0"},
		AuthToken: "test-aud:user-1",
	})
	require.NoError(t, err)

	_, err = s.StartSession(Request{
		Client:    session.ClientDescriptor{Type: session.ClientBrowser, Name: "chrome", Version: "120.0.0"},
		AuthToken: "test-aud:user-2",
	})
	require.Error(t, err)

	_, err = s.StartSession(Request{
		Client:    session.ClientDescriptor{Type: session.ClientBrowser, Name: "chrome", Version: "100.0.0"},
		AuthToken: "test-aud:user-3",
	})
	require.Error(t, err)

	snap := reg.Snapshot()
	assert.Equal(t, int64(1), snap["sessions_admitted_total"])
	assert.Equal(t, int64(1), snap["sessions_rejected_resource_limit_total"])
	assert.Equal(t, int64(1), snap["sessions_rejected_client_not_supported_total"])
}

func TestVersionLess(t *testing.T) {
	assert.True(t, versionLess("1.2.3", "1.10.0"))
	assert.False(t, versionLess("1.10.0", "1.2.3"))
	assert.False(t, versionLess("2.0.0", "2.0.0"))
	assert.True(t, versionLess("1.9", "1.9.1"))
}
