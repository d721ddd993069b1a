// Package orchestrator wires a transport's audio receiver through the
// audio pipeline into the ASR manager and routes updates back over
// the signalling channel — spec.md §4.5, grounded on
// original_source/realtime/mod.rs's spawn_pipeline_task.
package orchestrator

import (
	"time"

	"github.com/rapidaai/realtime-asr-gateway/internal/asr"
	"github.com/rapidaai/realtime-asr-gateway/internal/audio/pipeline"
	"github.com/rapidaai/realtime-asr-gateway/internal/gatewayerr"
	"github.com/rapidaai/realtime-asr-gateway/internal/logging"
	"github.com/rapidaai/realtime-asr-gateway/internal/metrics"
	"github.com/rapidaai/realtime-asr-gateway/internal/session"
)

// SignallingSink is the subset of the WS/HTTP transport the
// orchestrator needs to deliver transcripts and errors back to the
// client, kept narrow so any transport can implement it.
type SignallingSink interface {
	SendPartial(sessionID, text string, confidence float64)
	SendFinal(sessionID, text string)
	SendError(sessionID string, err *gatewayerr.Error)
}

// AudioReceiver yields decoded interleaved i16 PCM chunks for one
// session until the source closes, then its channel closes (spec.md
// §4.2's "same logical artifact" across all three transports). Any
// Opus decoding happens in the transport before a chunk is sent here.
type AudioReceiver <-chan []int16

// silenceRMSEpsilon below this average magnitude, a frame counts as
// silent for finalization-silence purposes.
const silenceRMSEpsilon = 1e-4

// Session drives one session's orchestration: start -> updates
// forwarder -> main ingest loop -> flush/finish/drop on close.
type Session struct {
	logger          logging.Logger
	sessionID       string
	asrManager      *asr.Manager
	pipeline        *pipeline.Pipeline
	sink            SignallingSink
	finalizeSilence time.Duration
	metrics         *metrics.Registry
}

// New builds a per-session orchestrator. reg may be nil; counters are
// then silently dropped (SPEC_FULL.md §4.7 Monitoring/metrics).
func New(logger logging.Logger, sessionID string, asrManager *asr.Manager, p *pipeline.Pipeline, sink SignallingSink, finalizeSilence time.Duration, reg *metrics.Registry) *Session {
	return &Session{
		logger:          logger,
		sessionID:       sessionID,
		asrManager:      asrManager,
		pipeline:        p,
		sink:            sink,
		finalizeSilence: finalizeSilence,
		metrics:         reg,
	}
}

// Run executes the orchestration loop until audio closes; it blocks
// and should be run in its own goroutine per session.
func (s *Session) Run(audio AudioReceiver) {
	if err := s.asrManager.StartSession(s.sessionID); err != nil {
		if ge, ok := gatewayerr.As(err); ok {
			s.metrics.Inc("asr_errors_" + string(ge.Code) + "_total")
			s.sink.SendError(s.sessionID, ge)
		}
		return
	}

	done := make(chan struct{})
	go s.forwardUpdates(done)

	lastSound := time.Now()
	silenceTimer := time.NewTicker(50 * time.Millisecond)
	defer silenceTimer.Stop()

loop:
	for {
		select {
		case pkt, ok := <-audio:
			if !ok {
				break loop
			}
			frames := s.pipeline.Process(pkt)
			if !isSilent(pkt) {
				lastSound = time.Now()
			}
			for _, f := range frames {
				if err := s.asrManager.SendAudio(s.sessionID, f); err != nil {
					s.logger.Warnw("send_audio failed", "session_id", s.sessionID, "error", err)
					if ge, ok := gatewayerr.As(err); ok {
						s.metrics.Inc("asr_errors_" + string(ge.Code) + "_total")
					}
					break loop
				}
				s.metrics.Inc("audio_frames_processed_total")
			}
		case <-silenceTimer.C:
			if s.finalizeSilence > 0 && time.Since(lastSound) >= s.finalizeSilence {
				break loop
			}
		}
	}

	if residue := s.pipeline.Flush(); residue != nil {
		_ = s.asrManager.SendAudio(s.sessionID, residue)
	}
	if err := s.asrManager.FinishSession(s.sessionID); err != nil {
		s.logger.Warnw("finish_session failed", "session_id", s.sessionID, "error", err)
	}
	<-done
	s.asrManager.DropSession(s.sessionID)
}

// forwardUpdates loops on PollUpdate, routing Partial/Final updates to
// the signalling sink, stopping on Final or channel closure.
func (s *Session) forwardUpdates(done chan<- struct{}) {
	defer close(done)
	for {
		update, ok, err := s.asrManager.PollUpdate(s.sessionID)
		if err != nil {
			if ge, ok := gatewayerr.As(err); ok {
				s.metrics.Inc("asr_errors_" + string(ge.Code) + "_total")
				s.sink.SendError(s.sessionID, ge)
			}
			return
		}
		if !ok {
			return
		}
		switch update.Kind {
		case session.Partial:
			s.metrics.Inc("partials_emitted_total")
			s.sink.SendPartial(s.sessionID, update.Text, update.Confidence)
		case session.Final:
			s.metrics.Inc("finals_emitted_total")
			s.sink.SendFinal(s.sessionID, update.Text)
			return
		}
	}
}

func isSilent(pcm []int16) bool {
	if len(pcm) == 0 {
		return true
	}
	var sum float64
	for _, s := range pcm {
		v := float64(s) / 32767.0
		sum += v * v
	}
	rms := sum / float64(len(pcm))
	return rms < silenceRMSEpsilon*silenceRMSEpsilon
}
