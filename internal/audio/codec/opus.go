// Package codec wraps the Opus decoder used on the WebRTC ingest
// path, grounded on audio_pipeline/opus_decoder.rs and the teacher's
// own gopkg.in/hraban/opus.v2 dependency.
package codec

import (
	"fmt"

	"gopkg.in/hraban/opus.v2"
)

// OpusDecoder decodes inbound Opus packets to interleaved S16LE PCM,
// with packet-loss concealment when a packet is missing.
type OpusDecoder struct {
	decoder    *opus.Decoder
	sampleRate int
	channels   int
}

// NewOpusDecoder builds a decoder for the given sample rate/channels.
// Only 1 or 2 channels and {8000,12000,16000,24000,48000} Hz are valid,
// matching the original decoder's accepted set.
func NewOpusDecoder(sampleRate, channels int) (*OpusDecoder, error) {
	if channels != 1 && channels != 2 {
		return nil, fmt.Errorf("codec: unsupported channel count: %d", channels)
	}
	switch sampleRate {
	case 8000, 12000, 16000, 24000, 48000:
	default:
		return nil, fmt.Errorf("codec: unsupported sample rate: %d", sampleRate)
	}
	dec, err := opus.NewDecoder(sampleRate, channels)
	if err != nil {
		return nil, fmt.Errorf("codec: opus decoder init: %w", err)
	}
	return &OpusDecoder{decoder: dec, sampleRate: sampleRate, channels: channels}, nil
}

// frameSize is the 20ms frame size in samples-per-channel for this
// decoder's sample rate.
func (d *OpusDecoder) frameSize() int {
	return d.sampleRate / 50
}

// Decode decodes one Opus packet into interleaved i16 PCM.
func (d *OpusDecoder) Decode(packet []byte) ([]int16, error) {
	out := make([]int16, d.frameSize()*d.channels)
	n, err := d.decoder.Decode(packet, out)
	if err != nil {
		return nil, fmt.Errorf("codec: opus decode: %w", err)
	}
	return out[:n*d.channels], nil
}

// DecodePLC fabricates one frame of concealment samples for a missing
// packet, so downstream timing does not drift (spec.md §4.3 step 1).
func (d *OpusDecoder) DecodePLC() ([]int16, error) {
	out := make([]int16, d.frameSize()*d.channels)
	n, err := d.decoder.Decode(nil, out)
	if err != nil {
		return nil, fmt.Errorf("codec: opus plc: %w", err)
	}
	return out[:n*d.channels], nil
}
