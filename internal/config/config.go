// Package config defines the speechsegd configuration schema and loads it
// from an optional YAML file plus SPEECHSEG_* environment overrides.
package config

import (
	"log/slog"
	"time"

	speechseg "github.com/cortexswarm/speechseg-go"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Level maps l onto slog. Unknown values map to info.
func (l LogLevel) Level() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Classifier backends.
const (
	VADSilero = "silero"
	VADEnergy = "energy"
)

// Transcription backends.
const (
	STTDummy         = "dummy"
	STTWhisperHTTP   = "whisper-http"
	STTWhisperNative = "whisper-native"
)

// Config is the root configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	VAD      VADConfig      `yaml:"vad"`
	STT      STTConfig      `yaml:"stt"`
	Recorder RecorderConfig `yaml:"recorder"`
	Store    StoreConfig    `yaml:"store"`
	Observe  ObserveConfig  `yaml:"observe"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	ListenAddr string   `yaml:"listen_addr"`
	LogLevel   LogLevel `yaml:"log_level"`

	// GRPCHealthAddr enables the gRPC health service when non-empty.
	GRPCHealthAddr string `yaml:"grpc_health_addr"`

	// ReadLimit caps a single WebSocket message in bytes.
	ReadLimit int64 `yaml:"read_limit"`
}

// VADConfig selects the speech classifier and the segmentation parameters.
type VADConfig struct {
	Engine         string  `yaml:"engine"`
	ModelPath      string  `yaml:"model_path"`
	OnnxRuntimeLib string  `yaml:"onnxruntime_lib"`
	SampleRate     int     `yaml:"sample_rate"`
	ChunkSamples   int     `yaml:"chunk_samples"`
	SpeechPadMs    int     `yaml:"speech_pad_ms"`
	Threshold      float32 `yaml:"threshold"`
	MinSilenceMs   int     `yaml:"min_silence_ms"`
}

// Segmentation returns the session parameters for the core package.
func (v VADConfig) Segmentation() speechseg.Config {
	return speechseg.Config{
		SampleRate:   v.SampleRate,
		ChunkSamples: v.ChunkSamples,
		SpeechPadMs:  v.SpeechPadMs,
		Threshold:    v.Threshold,
		MinSilenceMs: v.MinSilenceMs,
	}
}

// STTConfig selects the transcription backend.
type STTConfig struct {
	Engine    string        `yaml:"engine"`
	ServerURL string        `yaml:"server_url"` // whisper-http
	ModelPath string        `yaml:"model_path"` // whisper-native
	Language  string        `yaml:"language"`
	Timeout   time.Duration `yaml:"timeout"`
}

// RecorderConfig controls where segments are written. An empty Dir disables
// recording; segments are then only reported to the client.
type RecorderConfig struct {
	Dir string `yaml:"dir"`
}

// StoreConfig holds the PostgreSQL DSN. Empty disables persistence.
type StoreConfig struct {
	PostgresDSN string `yaml:"postgres_dsn"`
}

// ObserveConfig configures telemetry resources.
type ObserveConfig struct {
	ServiceName string `yaml:"service_name"`
}

// Defaults returns the configuration used when no file is present.
func Defaults() *Config {
	seg := speechseg.DefaultConfig()
	return &Config{
		Server: ServerConfig{
			ListenAddr: ":8569",
			LogLevel:   LogInfo,
			ReadLimit:  1 << 20,
		},
		VAD: VADConfig{
			Engine:       VADSilero,
			ModelPath:    "data/silero_vad.onnx",
			SampleRate:   seg.SampleRate,
			ChunkSamples: seg.ChunkSamples,
			SpeechPadMs:  seg.SpeechPadMs,
			Threshold:    seg.Threshold,
			MinSilenceMs: seg.MinSilenceMs,
		},
		STT: STTConfig{
			Engine:    STTDummy,
			ServerURL: "http://localhost:8080",
			Language:  "en",
			Timeout:   30 * time.Second,
		},
		Recorder: RecorderConfig{Dir: "data/records"},
		Observe:  ObserveConfig{ServiceName: "speechsegd"},
	}
}
