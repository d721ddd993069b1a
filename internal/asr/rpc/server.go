package rpc

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/rapidaai/realtime-asr-gateway/internal/logging"
)

// Recognizer is the actual inference engine, injected and out of
// scope for this gateway (spec.md §1 treats it as a black box). A
// deterministic test double is used when none is provided.
type Recognizer interface {
	Transcribe(pcm []int16, sampleRateHz, channels int32, language string) (string, error)
}

// DefaultRecognizer is a deterministic stand-in used when no real
// engine is wired, grounded on the original LocalAsrService's
// mock-response fallback.
type DefaultRecognizer struct{}

func (DefaultRecognizer) Transcribe(pcm []int16, sampleRateHz, channels int32, language string) (string, error) {
	return fmt.Sprintf("final (%d samples) [rate:%d channels:%d lang:%s]", len(pcm), sampleRateHz, channels, language), nil
}

// LocalService is the ASR backend server: accumulates i16 PCM across
// AudioContent messages and runs the recognizer once the stream ends,
// emitting lightweight Partials keyed to chunk count along the way,
// grounded on original_source/asr/server.rs.
type LocalService struct {
	logger     logging.Logger
	recognizer Recognizer
}

// NewLocalService builds a LocalService. recognizer may be nil, in
// which case DefaultRecognizer is used.
func NewLocalService(logger logging.Logger, recognizer Recognizer) *LocalService {
	if recognizer == nil {
		recognizer = DefaultRecognizer{}
	}
	return &LocalService{logger: logger, recognizer: recognizer}
}

func (s *LocalService) StreamingRecognize(stream StreamingRecognizeStream) error {
	var cfg *RecognizeConfig
	var chunks int
	var buffer []int16

	for {
		req, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if req.Config != nil {
			cfg = req.Config
			s.logger.Infow("asr backend config received", "language", cfg.Language, "sample_rate", cfg.SampleRateHz)
			continue
		}
		if req.AudioContent != nil {
			chunks++
			buffer = append(buffer, decodeS16LE(req.AudioContent)...)
			partial := &StreamingRecognizeResponse{
				Results: []SpeechRecognitionResult{{
					Transcript: fmt.Sprintf("partial chunk %d (%d bytes)", chunks, len(req.AudioContent)),
					Confidence: 0.5,
				}},
				IsFinal: false,
			}
			if err := stream.Send(partial); err != nil {
				return err
			}
		}
	}

	sampleRate, channels := int32(16000), int32(1)
	language := "auto"
	if cfg != nil {
		sampleRate, channels, language = cfg.SampleRateHz, cfg.Channels, cfg.Language
	}
	text, err := s.recognizer.Transcribe(buffer, sampleRate, channels, language)
	if err != nil {
		return err
	}
	return stream.Send(&StreamingRecognizeResponse{
		Results: []SpeechRecognitionResult{{Transcript: text, Confidence: 0.9}},
		IsFinal: true,
	})
}

func decodeS16LE(b []byte) []int16 {
	n := len(b) / 2
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = int16(binary.LittleEndian.Uint16(b[2*i : 2*i+2]))
	}
	return out
}
