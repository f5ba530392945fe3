package speechseg

import (
	"errors"
	"fmt"
)

const (
	DefaultSampleRate   = 16000
	DefaultChunkSamples = 512
	DefaultSpeechPadMs  = 250
	DefaultThreshold    = 0.5
	DefaultMinSilenceMs = 100

	// BytesPerSample is fixed: audio is 16-bit signed little-endian mono PCM.
	BytesPerSample = 2
)

// Config holds the segmentation parameters shared by every session a Factory
// creates. The zero value is not usable; start from DefaultConfig.
type Config struct {
	SampleRate   int     // Hz, e.g. 16000
	ChunkSamples int     // samples per classifier frame; must match the classifier (512 for Silero at 16 kHz)
	SpeechPadMs  int     // ms of pre-speech audio kept in the history window; 0 disables padding
	Threshold    float32 // speech probability threshold, classifier-specific meaning
	MinSilenceMs int     // ms of quiet required before the classifier reports an end
}

// DefaultConfig returns the configuration the service ships with.
func DefaultConfig() Config {
	return Config{
		SampleRate:   DefaultSampleRate,
		ChunkSamples: DefaultChunkSamples,
		SpeechPadMs:  DefaultSpeechPadMs,
		Threshold:    DefaultThreshold,
		MinSilenceMs: DefaultMinSilenceMs,
	}
}

// FrameBytes is the size in bytes of one classifier frame.
func (c Config) FrameBytes() int {
	return c.ChunkSamples * BytesPerSample
}

// PadBytes is the capacity in bytes of the history window.
func (c Config) PadBytes() int {
	return c.SpeechPadMs * (c.SampleRate / 1000) * BytesPerSample
}

// Validate checks Config and returns every problem found.
func (c Config) Validate() error {
	var errs []error
	if c.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("config: SampleRate must be > 0, got %d", c.SampleRate))
	} else if c.SampleRate%1000 != 0 {
		errs = append(errs, fmt.Errorf("config: SampleRate must be a whole number of kHz, got %d", c.SampleRate))
	}
	if c.ChunkSamples <= 0 {
		errs = append(errs, fmt.Errorf("config: ChunkSamples must be > 0, got %d", c.ChunkSamples))
	}
	if c.SpeechPadMs < 0 {
		errs = append(errs, errors.New("config: SpeechPadMs must be >= 0"))
	}
	if c.Threshold < 0 || c.Threshold > 1 {
		errs = append(errs, errors.New("config: Threshold must be in [0, 1]"))
	}
	if c.MinSilenceMs < 0 {
		errs = append(errs, errors.New("config: MinSilenceMs must be >= 0"))
	}
	return errors.Join(errs...)
}
