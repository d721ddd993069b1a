// Package signalling implements session admission, heartbeat, and
// ICE-server vending — the Session & Signalling Service of spec.md §4.1.
package signalling

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rapidaai/realtime-asr-gateway/internal/gatewayerr"
	"github.com/rapidaai/realtime-asr-gateway/internal/logging"
	"github.com/rapidaai/realtime-asr-gateway/internal/metrics"
	"github.com/rapidaai/realtime-asr-gateway/internal/resource"
	"github.com/rapidaai/realtime-asr-gateway/internal/session"
	"github.com/rapidaai/realtime-asr-gateway/internal/token"
)

// MinVersion is the compatibility floor for one (type, name) client family.
type MinVersion struct {
	Type       session.ClientType
	Name       string
	MinVersion string
}

// Request is the inbound admission request.
type Request struct {
	Client     session.ClientDescriptor
	AuthToken  string
	Retry      bool
}

// Response is returned on successful admission.
type Response struct {
	SessionID      string
	IceServers     []session.IceServer
	MaxBitrateKbps int
}

// Service implements the admission algorithm of spec.md §4.1 in order:
// compatibility check, token validation, resource check, allocation.
type Service struct {
	logger    logging.Logger
	resources *resource.Manager
	validator token.Validator
	audience  string
	metrics   *metrics.Registry

	minVersions map[string]string // "type/name" -> min version

	iceMu      sync.RWMutex
	iceServers []session.IceServer

	defaultBitrateKbps int

	admissionMu sync.Mutex // FIFO tie-break for concurrent admission at the cap
}

// New builds a Service. minVersions keys are "type/name" (e.g.
// "browser/chrome"); iceServers is the initial vended snapshot. reg
// may be nil; counters are then silently dropped (SPEC_FULL.md §4.7
// Monitoring/metrics).
func New(logger logging.Logger, resources *resource.Manager, validator token.Validator, audience string,
	minVersions map[string]string, iceServers []session.IceServer, defaultBitrateKbps int, reg *metrics.Registry) *Service {
	return &Service{
		logger:             logger,
		resources:          resources,
		validator:          validator,
		audience:           audience,
		minVersions:        minVersions,
		iceServers:         iceServers,
		defaultBitrateKbps: defaultBitrateKbps,
		metrics:            reg,
	}
}

// UpdateIceServers hot-swaps the vended ICE list. Existing sessions
// keep whatever snapshot they were given at admission time; only new
// admissions see the update.
func (s *Service) UpdateIceServers(servers []session.IceServer) {
	s.iceMu.Lock()
	s.iceServers = servers
	s.iceMu.Unlock()
}

func (s *Service) iceSnapshot() []session.IceServer {
	s.iceMu.RLock()
	defer s.iceMu.RUnlock()
	out := make([]session.IceServer, len(s.iceServers))
	copy(out, s.iceServers)
	return out
}

// StartSession runs the four-step admission algorithm and, on
// success, returns the new session's id, ICE snapshot, and bitrate cap.
func (s *Service) StartSession(req Request) (Response, error) {
	// 1. Compatibility check.
	key := string(req.Client.Type) + "/" + req.Client.Name
	if min, ok := s.minVersions[key]; ok {
		if versionLess(req.Client.Version, min) {
			s.metrics.Inc("sessions_rejected_client_not_supported_total")
			return Response{}, gatewayerr.New(gatewayerr.ClientNotSupported,
				"client version below configured minimum")
		}
	}

	// 2. Token validation.
	claims, err := s.validator.Validate(req.AuthToken, s.audience)
	if err != nil {
		s.metrics.Inc("sessions_rejected_authentication_total")
		return Response{}, err
	}

	// 3 & 4. Resource check + allocation, serialized for FIFO tie-break
	// at the cap (spec.md §4.1).
	s.admissionMu.Lock()
	defer s.admissionMu.Unlock()

	id := uuid.New().String()
	now := time.Now()
	sess := session.New(id, req.Client, claims.Subject, s.defaultBitrateKbps, now)
	if err := s.resources.TryAllocate(sess); err != nil {
		s.metrics.Inc("sessions_rejected_resource_limit_total")
		return Response{}, err
	}

	s.metrics.Inc("sessions_admitted_total")
	s.logger.Infow("session admitted", "session_id", id, "client_type", req.Client.Type, "client_name", req.Client.Name)
	return Response{
		SessionID:      id,
		IceServers:     s.iceSnapshot(),
		MaxBitrateKbps: s.defaultBitrateKbps,
	}, nil
}

// EndSession removes a session; fails with SessionNotFound if unknown.
func (s *Service) EndSession(id string) error {
	if err := s.resources.End(id); err != nil {
		return err
	}
	s.logger.Infow("session ended", "session_id", id)
	return nil
}

// Heartbeat refreshes a session's last-heartbeat; fails with
// SessionNotFound if unknown.
func (s *Service) Heartbeat(id string) error {
	return s.resources.Heartbeat(id)
}

// ActiveSessions returns the current admitted-session count.
func (s *Service) ActiveSessions() int {
	return s.resources.ActiveSessions()
}

// versionLess compares dotted version strings ("1.2.3" < "1.10.0")
// segment by numeric segment; a malformed segment compares as 0.
func versionLess(a, b string) bool {
	as, bs := splitVersion(a), splitVersion(b)
	for i := 0; i < len(as) || i < len(bs); i++ {
		var av, bv int
		if i < len(as) {
			av = as[i]
		}
		if i < len(bs) {
			bv = bs[i]
		}
		if av != bv {
			return av < bv
		}
	}
	return false
}

func splitVersion(v string) []int {
	out := make([]int, 0, 3)
	cur := 0
	has := false
	for _, r := range v {
		if r >= '0' && r <= '9' {
			cur = cur*10 + int(r-'0')
			has = true
			continue
		}
		if r == '.' {
			out = append(out, cur)
			cur = 0
			has = false
			continue
		}
	}
	if has || len(out) == 0 {
		out = append(out, cur)
	}
	return out
}
