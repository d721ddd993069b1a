package pipeline

// Config pins the pipeline's fixed shapes, mirroring
// config.Audio.TargetFrameSamples/Input/Target without importing the
// config package (keeps pipeline dependency-free per spec.md §4.3's
// "pure transformer" contract).
type Config struct {
	InputSampleRateHz  int
	InputChannels      int
	TargetSampleRateHz int
	TargetFrameSamples int
	TargetRMSDb        float64
	LimiterThresholdDb float64
}

// Pipeline composes interleaved->mono, resample, normalize, and frame
// reconstruction in the fixed order of spec.md §4.3.
type Pipeline struct {
	inputChannels int
	resampler     *Resampler
	normalizer    *Normalizer
	reconstructor *FrameReconstructor
}

// New builds a Pipeline from Config.
func New(cfg Config) *Pipeline {
	return &Pipeline{
		inputChannels: cfg.InputChannels,
		resampler:     NewResampler(cfg.InputSampleRateHz, cfg.TargetSampleRateHz),
		normalizer:    NewNormalizer(cfg.TargetRMSDb, cfg.LimiterThresholdDb),
		reconstructor: NewFrameReconstructor(cfg.TargetFrameSamples),
	}
}

// Process feeds one interleaved S16LE chunk through the full pipeline
// and returns every complete target_frame_samples-length frame it
// produced. Contract: process(input) -> 0..N target frames.
func (p *Pipeline) Process(input []int16) [][]float32 {
	mono := InterleavedToMono(input, p.inputChannels)
	resampled := p.resampler.Resample(mono)
	normalized := p.normalizer.Normalize(resampled)
	return p.reconstructor.Push(normalized)
}

// Flush returns the pipeline's residue as a final, possibly-short
// frame, or nil if nothing is buffered.
func (p *Pipeline) Flush() []float32 {
	return p.reconstructor.Flush()
}
