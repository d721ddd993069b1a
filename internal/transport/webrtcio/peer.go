// Package webrtcio wires one admitted session's WebRTC media path:
// SDP offer/answer, ICE candidates, and an inbound Opus audio track
// decoded into the pipeline's input shape. Grounded on the teacher's
// internal_webrtc.NewStreamer pattern (api/talk/webrtc.go) and
// pion/webrtc v4's PeerConnection lifecycle.
package webrtcio

import (
	"sync"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"

	"github.com/rapidaai/realtime-asr-gateway/internal/audio/codec"
	"github.com/rapidaai/realtime-asr-gateway/internal/gatewayerr"
	"github.com/rapidaai/realtime-asr-gateway/internal/logging"
)

// opusPayloadType is the dynamic RTP payload type negotiated for Opus
// in this gateway's SDP, matching spec.md §4.2's fixed media profile.
const opusPayloadType = webrtc.PayloadType(111)

// NewMediaEngine registers Opus at 48kHz/2ch on the fixed dynamic
// payload type, mirroring the teacher's codec registration.
func NewMediaEngine() (*webrtc.MediaEngine, error) {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterCodec(webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{
			MimeType:    webrtc.MimeTypeOpus,
			ClockRate:   48000,
			Channels:    2,
			SDPFmtpLine: "minptime=10;useinbandfec=1",
		},
		PayloadType: opusPayloadType,
	}, webrtc.RTPCodecTypeAudio); err != nil {
		return nil, err
	}
	return m, nil
}

// Streamer owns one PeerConnection and decodes its inbound Opus track
// into raw PCM, delivered on Samples.
type Streamer struct {
	logger logging.Logger
	pc     *webrtc.PeerConnection

	decoder *codec.OpusDecoder
	samples chan []int16

	closeOnce sync.Once
}

// NewStreamer builds a PeerConnection with the given ICE servers and
// starts listening for the inbound audio track. Samples on the
// returned channel are interleaved S16LE at 48kHz/2ch, matching
// config.Audio.Input's expected shape for the WebRTC transport.
func NewStreamer(logger logging.Logger, iceServers []webrtc.ICEServer) (*Streamer, error) {
	mediaEngine, err := NewMediaEngine()
	if err != nil {
		return nil, gatewayerr.Wrap(gatewayerr.Transport, "failed to build media engine", err)
	}

	registry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, registry); err != nil {
		return nil, gatewayerr.Wrap(gatewayerr.Transport, "failed to register interceptors", err)
	}

	api := webrtc.NewAPI(webrtc.WithMediaEngine(mediaEngine), webrtc.WithInterceptorRegistry(registry))

	pc, err := api.NewPeerConnection(webrtc.Configuration{ICEServers: iceServers})
	if err != nil {
		return nil, gatewayerr.Wrap(gatewayerr.Transport, "failed to create peer connection", err)
	}

	decoder, err := codec.NewOpusDecoder(48000, 2)
	if err != nil {
		pc.Close()
		return nil, gatewayerr.Wrap(gatewayerr.Internal, "failed to create opus decoder", err)
	}

	s := &Streamer{
		logger:  logger,
		pc:      pc,
		decoder: decoder,
		samples: make(chan []int16, 64),
	}

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		if track.Kind() != webrtc.RTPCodecTypeAudio {
			return
		}
		s.readTrack(track)
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		s.logger.Infow("peer connection state changed", "state", state.String())
		switch state {
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed, webrtc.PeerConnectionStateDisconnected:
			s.Close()
		}
	})

	return s, nil
}

// readTrack pumps RTP packets off track, decodes Opus payloads (with
// PLC on loss, detected via sequence-number gaps), and emits PCM on
// Samples until the track ends or the streamer closes.
func (s *Streamer) readTrack(track *webrtc.TrackRemote) {
	var lastSeq uint16
	haveSeq := false
	for {
		var pkt *rtp.Packet
		var err error
		pkt, _, err = track.ReadRTP()
		if err != nil {
			close(s.samples)
			return
		}
		if haveSeq && pkt.SequenceNumber != lastSeq+1 {
			if lost, err := s.decoder.DecodePLC(); err == nil {
				s.emit(lost)
			}
		}
		lastSeq = pkt.SequenceNumber
		haveSeq = true

		pcm, err := s.decoder.Decode(pkt.Payload)
		if err != nil {
			s.logger.Warnw("opus decode failed", "error", err)
			continue
		}
		s.emit(pcm)
	}
}

// emit blocks on a full channel rather than dropping the frame,
// matching spec.md §5's bounded-channel invariant ("a full channel
// blocks the producer, providing natural backpressure") and §3's
// StreamHandle contract. The channel only drains via the orchestrator
// reading Samples(), or closes when the track ends.
func (s *Streamer) emit(pcm []int16) {
	s.samples <- pcm
}

// Samples returns the channel of decoded PCM frames; it closes when
// the underlying track ends.
func (s *Streamer) Samples() <-chan []int16 { return s.samples }

// SetRemoteOffer applies the client's SDP offer and returns a local
// answer to relay back over the signalling channel.
func (s *Streamer) SetRemoteOffer(sdp string) (string, error) {
	if err := s.pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer, SDP: sdp,
	}); err != nil {
		return "", gatewayerr.Wrap(gatewayerr.Transport, "failed to set remote description", err)
	}
	answer, err := s.pc.CreateAnswer(nil)
	if err != nil {
		return "", gatewayerr.Wrap(gatewayerr.Transport, "failed to create answer", err)
	}
	gatherComplete := webrtc.GatheringCompletePromise(s.pc)
	if err := s.pc.SetLocalDescription(answer); err != nil {
		return "", gatewayerr.Wrap(gatewayerr.Transport, "failed to set local description", err)
	}
	<-gatherComplete
	return s.pc.LocalDescription().SDP, nil
}

// AddICECandidate applies a remote ICE candidate relayed over signalling.
func (s *Streamer) AddICECandidate(candidate string) error {
	if err := s.pc.AddICECandidate(webrtc.ICECandidateInit{Candidate: candidate}); err != nil {
		return gatewayerr.Wrap(gatewayerr.Transport, "failed to add ice candidate", err)
	}
	return nil
}

// Close tears down the peer connection; idempotent.
func (s *Streamer) Close() {
	s.closeOnce.Do(func() {
		_ = s.pc.Close()
	})
}
