package pipeline

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResampler_IdentityWhenRatesMatch(t *testing.T) {
	r := NewResampler(16000, 16000)
	input := []float32{0.1, 0.2, -0.3, 0.4}
	out := r.Resample(input)
	assert.Equal(t, input, out)
}

func TestResampler_DownsampleLength(t *testing.T) {
	input := make([]float32, 480)
	for i := range input {
		input[i] = float32(i)
	}
	r := NewResampler(48000, 16000)
	out := r.Resample(input)
	require.Len(t, out, 160)
	assert.InDelta(t, 0.0, out[0], 1e-6)
	// position(159) = 159 / (16000/48000) = 477; see DESIGN.md for why
	// this differs from spec.md's illustrative "~479.0" example.
	assert.InDelta(t, 477.0, out[159], 0.05)
}

func TestResampler_MatchesExpectedSamplePositions(t *testing.T) {
	input := make([]float32, 480)
	for i := range input {
		input[i] = float32(i)
	}
	r := NewResampler(48000, 16000)
	out := r.Resample(input)

	// Spot-check a handful of output positions against the linear
	// mapping position(i) = i / (targetRate/inputRate), tolerating the
	// resampler's interpolation error rather than requiring exact equality.
	want := []float32{0, 3 * 3, 79 * 3, 159 * 3}
	got := []float32{out[0], out[3], out[79], out[159]}
	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 3)); diff != "" {
		t.Errorf("resampled positions mismatch (-want +got):\n%s", diff)
	}
}

func TestResampler_EmptyInput(t *testing.T) {
	r := NewResampler(48000, 16000)
	out := r.Resample(nil)
	assert.Empty(t, out)
}

func TestNormalizer_AllZeroReturnsUnchanged(t *testing.T) {
	n := NewNormalizer(-20, -1)
	in := []float32{0, 0, 0}
	out := n.Normalize(in)
	assert.Equal(t, in, out)
}

func TestNormalizer_ClampsToLimiter(t *testing.T) {
	n := NewNormalizer(0, -1) // target 0dB = 1.0 linear, limiter -1dB
	in := []float32{1, 1, 1, 1}
	out := n.Normalize(in)
	limiterLinear := dbToLinear(-1)
	for _, s := range out {
		assert.LessOrEqual(t, s, limiterLinear+1e-6)
		assert.GreaterOrEqual(t, s, -limiterLinear-1e-6)
	}
}

func TestFrameReconstructor_ExactMultiple(t *testing.T) {
	fr := NewFrameReconstructor(4)
	frames := fr.Push([]float32{1, 2, 3, 4, 5, 6, 7, 8})
	require.Len(t, frames, 2)
	assert.Equal(t, []float32{1, 2, 3, 4}, frames[0])
	assert.Equal(t, []float32{5, 6, 7, 8}, frames[1])
	assert.Nil(t, fr.Flush())
}

func TestFrameReconstructor_RemainderOnFlush(t *testing.T) {
	fr := NewFrameReconstructor(4)
	frames := fr.Push([]float32{1, 2, 3, 4, 5, 6})
	require.Len(t, frames, 1)
	rem := fr.Flush()
	assert.Equal(t, []float32{5, 6}, rem)
	assert.Nil(t, fr.Flush())
}

func TestInterleavedToMono_Averages(t *testing.T) {
	// Two channels: (100, 200) per frame -> average 150, scaled by 1/32767.
	interleaved := []int16{100, 200}
	mono := InterleavedToMono(interleaved, 2)
	require.Len(t, mono, 1)
	assert.InDelta(t, 150.0/32767.0, mono[0], 1e-6)
}

func TestPipeline_TwoChunksYieldOneFrame(t *testing.T) {
	// 960 stereo S16LE samples @48kHz (10ms) x2, target 16kHz mono 20ms (320 samples).
	p := New(Config{
		InputSampleRateHz:  48000,
		InputChannels:      2,
		TargetSampleRateHz: 16000,
		TargetFrameSamples: 320,
		TargetRMSDb:        -20,
		LimiterThresholdDb: -1,
	})
	chunk := make([]int16, 960)
	frames := p.Process(chunk)
	assert.Empty(t, frames)
	frames = p.Process(chunk)
	require.Len(t, frames, 1)
	assert.Len(t, frames[0], 320)
	assert.Empty(t, p.Flush())
}
