package speechseg

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func TestSileroContextSamples(t *testing.T) {
	tests := []struct {
		rate, chunk int
		want        int
		wantErr     bool
	}{
		{16000, 512, 64, false},
		{8000, 256, 32, false},
		{16000, 256, 0, true},
		{48000, 1536, 0, true},
	}
	for _, tt := range tests {
		got, err := sileroContextSamples(Config{SampleRate: tt.rate, ChunkSamples: tt.chunk})
		if (err != nil) != tt.wantErr {
			t.Errorf("%d/%d: err = %v, wantErr %v", tt.rate, tt.chunk, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("%d/%d: context = %d, want %d", tt.rate, tt.chunk, got, tt.want)
		}
	}
}

func TestLoadSileroRejectsBadInput(t *testing.T) {
	tests := []struct {
		name    string
		opts    SileroOptions
		cfg     Config
		wantErr string
	}{
		{"unsupported format", SileroOptions{ModelPath: "x.onnx"}, testConfig(250), "unsupported format"},
		{"no model path", SileroOptions{}, DefaultConfig(), "model path is required"},
		{"missing model", SileroOptions{ModelPath: filepath.Join(t.TempDir(), "silero_vad.onnx")}, DefaultConfig(), "not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadSilero(tt.opts)(tt.cfg)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}

	_, err := LoadSilero(SileroOptions{ModelPath: "x.onnx"})(testConfig(250))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("err = %v, want ErrUnsupportedFormat", err)
	}
}
