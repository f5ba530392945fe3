// Package stt transcribes recorded speech segments. Backends are selected by
// name from a registry: a fixed-text dummy for development, a whisper.cpp
// HTTP server, and the whisper.cpp cgo bindings (built with -tags whisper).
package stt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"strings"
	"time"
)

// Transcriber converts a WAV file into text. Implementations must be safe
// for concurrent use; every connection transcribes its own segments.
type Transcriber interface {
	Transcribe(ctx context.Context, wavPath string) (string, error)
}

// ErrUnknownEngine is returned by New for unregistered engine names.
var ErrUnknownEngine = errors.New("stt: unknown engine")

// Options carries backend settings. Fields irrelevant to the chosen backend
// are ignored.
type Options struct {
	ServerURL  string
	ModelPath  string
	Language   string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

type constructor func(Options) (Transcriber, error)

var registry = map[string]constructor{
	"dummy":          func(o Options) (Transcriber, error) { return NewDummy(o.Logger), nil },
	"whisper-http":   func(o Options) (Transcriber, error) { return NewWhisperHTTP(o) },
	"whisper-native": newNative,
}

// Engines lists the registered backend names.
func Engines() []string {
	return slices.Sorted(maps.Keys(registry))
}

// New builds the named backend.
func New(engine string, opts Options) (Transcriber, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	ctor, ok := registry[engine]
	if !ok {
		return nil, fmt.Errorf("%w %q; valid options: %s", ErrUnknownEngine, engine, strings.Join(Engines(), ", "))
	}
	opts.Logger.Info("creating stt engine", "engine", engine)
	return ctor(opts)
}
