//go:build whisper

// The whisper.cpp static library (libwhisper.a) and headers (whisper.h) must
// be available at link time via LIBRARY_PATH and C_INCLUDE_PATH.

package stt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

// whisperSampleRate is the only rate whisper.cpp accepts.
const whisperSampleRate = 16000

// Native runs whisper.cpp in-process. The model is shared; every call gets
// its own context, which is not goroutine-safe.
type Native struct {
	model    whisperlib.Model
	language string
	log      *slog.Logger
}

func newNative(o Options) (Transcriber, error) {
	if o.ModelPath == "" {
		return nil, errors.New("whisper: model path must not be empty")
	}
	model, err := whisperlib.New(o.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", o.ModelPath, err)
	}
	lang := o.Language
	if lang == "" {
		lang = "en"
	}
	return &Native{model: model, language: lang, log: o.Logger}, nil
}

func (n *Native) Transcribe(ctx context.Context, wavPath string) (string, error) {
	samples, rate, err := readMonoFloat32(wavPath)
	if err != nil {
		return "", fmt.Errorf("whisper: %w", err)
	}
	if rate != whisperSampleRate {
		return "", fmt.Errorf("whisper: %s is %d Hz, need %d", wavPath, rate, whisperSampleRate)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	wctx, err := n.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whisper: create context: %w", err)
	}
	if err := wctx.SetLanguage(n.language); err != nil {
		n.log.Warn("whisper: failed to set language, using default", "language", n.language, "error", err)
	}
	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("whisper: read segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}

// Close releases the model.
func (n *Native) Close() error {
	return n.model.Close()
}
