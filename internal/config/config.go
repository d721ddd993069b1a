// Package config loads the gateway's composite configuration.
//
// Unlike the teacher's api/integration-api/config package (a single
// .env file read through viper's automatic-env binding), this surface
// follows the original realtime service's convention: one YAML file
// per config group, all living in a directory named by an environment
// variable. The validator idiom (struct tags checked immediately after
// unmarshal) is kept from the teacher.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// DirEnvVar names the environment variable that points at the config
// directory; DefaultDir is used when it is unset.
const (
	DirEnvVar  = "GATEWAY_CONFIG_DIR"
	DefaultDir = "./config"
)

// ClientVersion is one entry in the supported-client compatibility table.
type ClientVersion struct {
	Name       string `mapstructure:"name" validate:"required"`
	MinVersion string `mapstructure:"min_version" validate:"required"`
}

// SupportedClients groups the per-family minimum-version tables.
type SupportedClients struct {
	Browsers []ClientVersion `mapstructure:"browsers" validate:"required,dive"`
	Mobile   []ClientVersion `mapstructure:"mobile" validate:"required,dive"`
}

// Network holds transport-level codec preferences.
type Network struct {
	PreferredCodecs struct {
		Audio []string `mapstructure:"audio" validate:"required"`
	} `mapstructure:"preferred_codecs"`
}

// IceServerConfig mirrors one entry of the vended ICE server list.
type IceServerConfig struct {
	URLs       []string `mapstructure:"urls" validate:"required"`
	Username   string   `mapstructure:"username"`
	Credential string   `mapstructure:"credential"`
}

// Signaling groups the signalling service's own tunables.
type Signaling struct {
	DefaultBitrateKbps int               `mapstructure:"default_bitrate_kbps" validate:"required,gt=0"`
	IceServers         []IceServerConfig `mapstructure:"ice_servers" validate:"required,dive"`
}

// Resources caps concurrency and idle lifetime.
type Resources struct {
	MaxConcurrentSessions int     `mapstructure:"max_concurrent_sessions" validate:"required,gt=0"`
	SessionTimeoutS       float64 `mapstructure:"session_timeout_s" validate:"required,gt=0"`
	GPUMemoryMB           int     `mapstructure:"gpu_memory_mb"`
	CPUThreads            int     `mapstructure:"cpu_threads"`
}

// Token configures the injected token validator.
type Token struct {
	Issuer   string `mapstructure:"issuer" validate:"required"`
	JWKSUrl  string `mapstructure:"jwks_url"`
	Audience string `mapstructure:"audience" validate:"required"`
}

// System is the `system_requirements.yaml` group.
type System struct {
	SupportedClients SupportedClients `mapstructure:"supported_clients" validate:"required"`
	Network          Network          `mapstructure:"network" validate:"required"`
	Signaling        Signaling        `mapstructure:"signaling" validate:"required"`
	Resources        Resources        `mapstructure:"resources" validate:"required"`
	Token            Token            `mapstructure:"token" validate:"required"`
}

// AudioInput describes the shape of audio as it arrives at a transport.
type AudioInput struct {
	SampleRateHz int `mapstructure:"sample_rate_hz" validate:"required,gt=0"`
	Channels     int `mapstructure:"channels" validate:"required,gt=0"`
	FrameMs      int `mapstructure:"frame_ms" validate:"required,gt=0"`
}

// AudioTarget describes the fixed shape fed to the ASR backend.
type AudioTarget struct {
	SampleRateHz int `mapstructure:"sample_rate_hz" validate:"required,gt=0"`
	Channels     int `mapstructure:"channels" validate:"required,gt=0"`
}

// FrameAssembler configures the frame reconstructor.
type FrameAssembler struct {
	FrameDurationMs int `mapstructure:"frame_duration_ms" validate:"required,gt=0"`
	JitterBufferMs  int `mapstructure:"jitter_buffer_ms"`
}

// Normalization configures the level normalizer.
type Normalization struct {
	TargetRMSDb         float64 `mapstructure:"target_rms_db" validate:"required"`
	LimiterThresholdDb  float64 `mapstructure:"limiter_threshold_db" validate:"required"`
	AttackMs            int     `mapstructure:"attack_ms"`
	ReleaseMs           int     `mapstructure:"release_ms"`
}

// Audio is the `audio_processing.yaml` group.
type Audio struct {
	Input          AudioInput     `mapstructure:"input" validate:"required"`
	Target         AudioTarget    `mapstructure:"target" validate:"required"`
	FrameAssembler FrameAssembler `mapstructure:"frame_assembler" validate:"required"`
	Normalization  Normalization  `mapstructure:"normalization" validate:"required"`
}

// TargetFrameSamples is the number of target-rate samples per
// assembled frame, derived the way the original config's
// `target_frame_samples()` method computes it.
func (a Audio) TargetFrameSamples() int {
	return a.Target.SampleRateHz * a.FrameAssembler.FrameDurationMs / 1000
}

// AsrService configures the backend RPC endpoint.
type AsrService struct {
	Endpoint          string `mapstructure:"endpoint" validate:"required"`
	RequestTimeoutMs  int    `mapstructure:"request_timeout_ms" validate:"required,gt=0"`
	MaxStreamDuration int    `mapstructure:"max_stream_duration_s" validate:"required,gt=0"`
}

// AsrStreaming configures session-level streaming behavior.
type AsrStreaming struct {
	PartialResultIntervalMs int `mapstructure:"partial_result_interval_ms"`
	FinalizationSilenceMs   int `mapstructure:"finalization_silence_ms" validate:"required,gt=0"`
	MaxPendingRequests      int `mapstructure:"max_pending_requests" validate:"required,gt=0"`
}

// AsrModel names the backend model and its language/VAD settings.
type AsrModel struct {
	Name       string `mapstructure:"name" validate:"required"`
	Language   string `mapstructure:"language" validate:"required"`
	EnableVAD  bool   `mapstructure:"enable_vad"`
}

// Asr is the `asr_pipeline.yaml` group.
type Asr struct {
	Service   AsrService   `mapstructure:"service" validate:"required"`
	Streaming AsrStreaming `mapstructure:"streaming" validate:"required"`
	Model     AsrModel     `mapstructure:"model" validate:"required"`
}

// Threshold is a warn/critical pair for a monitored quantity.
type Threshold struct {
	Warn     float64 `mapstructure:"warn"`
	Critical float64 `mapstructure:"critical"`
}

// Monitoring is the `monitoring.yaml` group.
type Monitoring struct {
	Metrics struct {
		Exporter  string `mapstructure:"exporter"`
		Listen    string `mapstructure:"listen"`
		ScrapePath string `mapstructure:"scrape_path"`
	} `mapstructure:"metrics"`
	Thresholds struct {
		RttMs           Threshold `mapstructure:"rtt_ms"`
		JitterMs        Threshold `mapstructure:"jitter_ms"`
		PacketLossPct   Threshold `mapstructure:"packet_loss_percent"`
		AsrLatencyMs    Threshold `mapstructure:"asr_latency_ms"`
	} `mapstructure:"thresholds"`
}

// Config is the assembled composite configuration.
type Config struct {
	System     System     `validate:"required"`
	Audio      Audio      `validate:"required"`
	Asr        Asr        `validate:"required"`
	Monitoring Monitoring `validate:"required"`
}

// group names one YAML file (without extension) under the config dir
// and the destination it unmarshals into.
type group struct {
	file string
	dest interface{}
}

// Load reads every config group from dir (one YAML file per group)
// and validates the assembled result.
func Load(dir string) (*Config, error) {
	cfg := &Config{}
	groups := []group{
		{"system_requirements", &cfg.System},
		{"audio_processing", &cfg.Audio},
		{"asr_pipeline", &cfg.Asr},
		{"monitoring", &cfg.Monitoring},
	}
	for _, g := range groups {
		if err := loadGroup(dir, g.file, g.dest); err != nil {
			return nil, fmt.Errorf("config: loading %s: %w", g.file, err)
		}
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return cfg, nil
}

// LoadFromEnv resolves the config directory from DirEnvVar (falling
// back to DefaultDir) and loads it.
func LoadFromEnv() (*Config, error) {
	dir := os.Getenv(DirEnvVar)
	if dir == "" {
		dir = DefaultDir
	}
	return Load(dir)
}

func loadGroup(dir, name string, dest interface{}) error {
	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	v.SetConfigFile(filepath.Join(dir, name+".yaml"))
	if err := v.ReadInConfig(); err != nil {
		return err
	}
	return v.Unmarshal(dest)
}
