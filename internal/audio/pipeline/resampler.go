// Package pipeline implements the audio conditioning pipeline:
// interleaved-to-mono, linear resampling, RMS normalization, and frame
// reconstruction. Every stage is a pure transformer with no I/O,
// grounded on original_source/audio_pipeline/{utils,resampler,
// normalizer,frame_reconstructor}.rs.
package pipeline

// InterleavedToMono averages c channels of interleaved i16 samples
// into mono f32 samples scaled into [-1, 1] by 1/math.MaxInt16
// (spec.md §4.3 step 2).
func InterleavedToMono(interleaved []int16, channels int) []float32 {
	if channels <= 0 {
		channels = 1
	}
	n := len(interleaved) / channels
	out := make([]float32, n)
	const scale = 1.0 / 32767.0
	for i := 0; i < n; i++ {
		var sum int32
		base := i * channels
		for c := 0; c < channels; c++ {
			sum += int32(interleaved[base+c])
		}
		avg := float32(sum) / float32(channels)
		out[i] = avg * scale
	}
	return out
}

// Resampler performs linear interpolation resampling from one fixed
// input rate to one fixed output rate (spec.md §4.3 step 3).
type Resampler struct {
	inputRate  int
	outputRate int
}

// NewResampler builds a resampler for the given input/output rates.
func NewResampler(inputRate, outputRate int) *Resampler {
	return &Resampler{inputRate: inputRate, outputRate: outputRate}
}

// Resample maps input to output length round(len(input)*outputRate/inputRate);
// sample n is linearly interpolated between the floor/ceil input
// samples at position n*inputRate/outputRate, clamped at the
// boundary. If rates match, the input is returned unchanged (identity,
// bit-identical).
func (r *Resampler) Resample(input []float32) []float32 {
	if r.inputRate == r.outputRate {
		out := make([]float32, len(input))
		copy(out, input)
		return out
	}
	if len(input) == 0 {
		return nil
	}
	ratio := float64(r.outputRate) / float64(r.inputRate)
	outLen := int(roundHalfAwayFromZero(float64(len(input)) * ratio))
	out := make([]float32, outLen)
	last := len(input) - 1
	inRatio := float64(r.inputRate) / float64(r.outputRate)
	for n := 0; n < outLen; n++ {
		pos := float64(n) * inRatio
		if pos <= 0 {
			out[n] = input[0]
			continue
		}
		if pos >= float64(last) {
			out[n] = input[last]
			continue
		}
		lo := int(pos)
		hi := lo + 1
		frac := pos - float64(lo)
		out[n] = float32(float64(input[lo])*(1-frac) + float64(input[hi])*frac)
	}
	return out
}

func roundHalfAwayFromZero(v float64) float64 {
	if v >= 0 {
		return float64(int64(v + 0.5))
	}
	return float64(int64(v - 0.5))
}
