package recorder

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/youpy/go-wav"
)

// WriteWAV writes mono 16-bit little-endian PCM to path as a WAV file. A
// trailing odd byte is dropped.
func WriteWAV(path string, pcm []byte, sampleRate int) error {
	n := len(pcm) / 2
	samples := make([]wav.Sample, n)
	for i := range samples {
		samples[i].Values[0] = int(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("recorder: create wav: %w", err)
	}
	w := wav.NewWriter(f, uint32(n), 1, uint32(sampleRate), 16)
	if err := w.WriteSamples(samples); err != nil {
		f.Close()
		return fmt.Errorf("recorder: write wav: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("recorder: close wav: %w", err)
	}
	return nil
}
