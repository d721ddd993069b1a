package pipeline

// FrameReconstructor accumulates f32 samples into an internal buffer
// and emits fixed-length frames as soon as the buffer has enough
// (spec.md §4.3 step 5), grounded on audio_pipeline/frame_reconstructor.rs.
type FrameReconstructor struct {
	targetSamples int
	buffer        []float32
}

// NewFrameReconstructor builds a reconstructor emitting frames of
// exactly targetSamples length.
func NewFrameReconstructor(targetSamples int) *FrameReconstructor {
	return &FrameReconstructor{
		targetSamples: targetSamples,
		buffer:        make([]float32, 0, targetSamples*2),
	}
}

// Push appends frame to the buffer and returns every fresh
// targetSamples-length frame it can now emit, keeping the remainder.
func (f *FrameReconstructor) Push(frame []float32) [][]float32 {
	f.buffer = append(f.buffer, frame...)
	var frames [][]float32
	for len(f.buffer) >= f.targetSamples {
		produced := make([]float32, f.targetSamples)
		copy(produced, f.buffer[:f.targetSamples])
		remainder := make([]float32, len(f.buffer)-f.targetSamples)
		copy(remainder, f.buffer[f.targetSamples:])
		f.buffer = remainder
		frames = append(frames, produced)
	}
	return frames
}

// Flush returns the buffered remainder as a single short frame, or
// nil if nothing is buffered.
func (f *FrameReconstructor) Flush() []float32 {
	if len(f.buffer) == 0 {
		return nil
	}
	out := f.buffer
	f.buffer = nil
	return out
}
