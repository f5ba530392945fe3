package stt

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/youpy/go-wav"
)

// readMonoFloat32 loads a WAV file as mono float32 samples, averaging stereo.
func readMonoFloat32(path string) ([]float32, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	r := wav.NewReader(f)
	format, err := r.Format()
	if err != nil {
		return nil, 0, fmt.Errorf("wav format: %w", err)
	}
	channels := int(format.NumChannels)
	if channels < 1 || channels > 2 {
		return nil, 0, fmt.Errorf("wav: only mono or stereo supported, got %d channels", channels)
	}

	var out []float32
	for {
		samples, err := r.ReadSamples()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("wav: read samples: %w", err)
		}
		for _, s := range samples {
			v := r.FloatValue(s, 0)
			if channels == 2 {
				v = (v + r.FloatValue(s, 1)) / 2
			}
			out = append(out, float32(v))
		}
	}
	return out, int(format.SampleRate), nil
}
