package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Loader reads the YAML file at Path (a missing file means defaults) and then
// applies SPEECHSEG_* environment overrides. Tests can override Lookup to
// inject deterministic maps.
type Loader struct {
	Path   string
	Lookup func(string) (string, bool)
}

// Load returns the validated configuration.
func (l Loader) Load() (*Config, error) {
	if l.Lookup == nil {
		l.Lookup = os.LookupEnv
	}
	cfg := Defaults()

	if l.Path != "" {
		f, err := os.Open(l.Path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("config: open %q: %w", l.Path, err)
		default:
			err = decode(f, cfg)
			f.Close()
			if err != nil {
				return nil, fmt.Errorf("config: parse %q: %w", l.Path, err)
			}
		}
	}

	if err := applyEnv(l.Lookup, cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromReader decodes YAML from r over the defaults and validates the
// result. Environment variables are not consulted.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Defaults()
	if err := decode(r, cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config: decode yaml: %w", err)
	}
	return nil
}

func applyEnv(lookup func(string) (string, bool), cfg *Config) error {
	overrideString(lookup, "SPEECHSEG_LISTEN_ADDR", &cfg.Server.ListenAddr)
	overrideString(lookup, "SPEECHSEG_GRPC_HEALTH_ADDR", &cfg.Server.GRPCHealthAddr)
	if v, ok := env(lookup, "SPEECHSEG_LOG_LEVEL"); ok {
		cfg.Server.LogLevel = LogLevel(strings.ToLower(v))
	}
	overrideString(lookup, "SPEECHSEG_VAD_ENGINE", &cfg.VAD.Engine)
	overrideString(lookup, "SPEECHSEG_VAD_MODEL_PATH", &cfg.VAD.ModelPath)
	overrideString(lookup, "SPEECHSEG_VAD_ONNXRUNTIME_LIB", &cfg.VAD.OnnxRuntimeLib)
	overrideString(lookup, "SPEECHSEG_STT_ENGINE", &cfg.STT.Engine)
	overrideString(lookup, "SPEECHSEG_STT_SERVER_URL", &cfg.STT.ServerURL)
	overrideString(lookup, "SPEECHSEG_STT_MODEL_PATH", &cfg.STT.ModelPath)
	overrideString(lookup, "SPEECHSEG_STT_LANGUAGE", &cfg.STT.Language)
	overrideString(lookup, "SPEECHSEG_RECORDER_DIR", &cfg.Recorder.Dir)
	overrideString(lookup, "SPEECHSEG_POSTGRES_DSN", &cfg.Store.PostgresDSN)

	var errs []error
	errs = append(errs,
		overrideFloat(lookup, "SPEECHSEG_VAD_THRESHOLD", &cfg.VAD.Threshold),
		overrideInt(lookup, "SPEECHSEG_VAD_SPEECH_PAD_MS", &cfg.VAD.SpeechPadMs),
		overrideInt(lookup, "SPEECHSEG_VAD_MIN_SILENCE_MS", &cfg.VAD.MinSilenceMs),
		overrideDuration(lookup, "SPEECHSEG_STT_TIMEOUT", &cfg.STT.Timeout),
	)
	return errors.Join(errs...)
}

func env(lookup func(string) (string, bool), key string) (string, bool) {
	v, ok := lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func overrideString(lookup func(string) (string, bool), key string, target *string) {
	if v, ok := env(lookup, key); ok {
		*target = v
	}
}

func overrideFloat(lookup func(string) (string, bool), key string, target *float32) error {
	if v, ok := env(lookup, key); ok {
		parsed, err := strconv.ParseFloat(v, 32)
		if err != nil {
			return fmt.Errorf("config: invalid value for %s: %w", key, err)
		}
		*target = float32(parsed)
	}
	return nil
}

func overrideInt(lookup func(string) (string, bool), key string, target *int) error {
	if v, ok := env(lookup, key); ok {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: invalid value for %s: %w", key, err)
		}
		*target = parsed
	}
	return nil
}

func overrideDuration(lookup func(string) (string, bool), key string, target *time.Duration) error {
	if v, ok := env(lookup, key); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: invalid value for %s: %w", key, err)
		}
		*target = parsed
	}
	return nil
}

var (
	validVADEngines = []string{VADSilero, VADEnergy}
	validSTTEngines = []string{STTDummy, STTWhisperHTTP, STTWhisperNative}
)

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.ListenAddr == "" {
		errs = append(errs, errors.New("server.listen_addr is required"))
	}
	if cfg.Server.ReadLimit <= 0 {
		errs = append(errs, fmt.Errorf("server.read_limit must be > 0, got %d", cfg.Server.ReadLimit))
	}

	if !slices.Contains(validVADEngines, cfg.VAD.Engine) {
		errs = append(errs, fmt.Errorf("vad.engine %q is invalid; valid values: %s", cfg.VAD.Engine, strings.Join(validVADEngines, ", ")))
	}
	if cfg.VAD.Engine == VADSilero && cfg.VAD.ModelPath == "" {
		errs = append(errs, errors.New("vad.model_path is required for the silero engine"))
	}
	if err := cfg.VAD.Segmentation().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("vad: %w", err))
	}

	switch cfg.STT.Engine {
	case STTDummy:
	case STTWhisperHTTP:
		if cfg.STT.ServerURL == "" {
			errs = append(errs, errors.New("stt.server_url is required for whisper-http"))
		}
	case STTWhisperNative:
		if cfg.STT.ModelPath == "" {
			errs = append(errs, errors.New("stt.model_path is required for whisper-native"))
		}
	default:
		errs = append(errs, fmt.Errorf("stt.engine %q is invalid; valid values: %s", cfg.STT.Engine, strings.Join(validSTTEngines, ", ")))
	}
	if cfg.STT.Timeout < 0 {
		errs = append(errs, errors.New("stt.timeout must not be negative"))
	}
	if cfg.Store.PostgresDSN != "" && cfg.Recorder.Dir == "" {
		errs = append(errs, errors.New("store.postgres_dsn requires recorder.dir: records point at WAV files"))
	}

	return errors.Join(errs...)
}
