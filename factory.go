package speechseg

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNoSpeechEndCallback = errors.New("speechseg: Callbacks.OnSpeechEnd is required")
	ErrFactoryClosed       = errors.New("speechseg: factory is closed")
)

// Option configures a Factory.
type Option func(*factoryOptions)

type factoryOptions struct {
	logger *slog.Logger
	mp     metric.MeterProvider
}

// WithLogger sets the logger handed to every session. Defaults to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(o *factoryOptions) { o.logger = l }
}

// WithMeterProvider sets the meter provider for segmentation metrics. Defaults
// to the global OTel provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *factoryOptions) { o.mp = mp }
}

// Factory holds the shared classifier model and builds one Session per
// connection. It is safe for concurrent use.
type Factory struct {
	cfg   Config
	model Model
	log   *slog.Logger
	met   *sessionMetrics

	mu     sync.RWMutex
	closed bool
}

// NewFactory validates cfg and loads the classifier model exactly once. A load
// failure is returned as is: the service cannot serve sessions without it.
func NewFactory(cfg Config, load ModelLoader, opts ...Option) (*Factory, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if load == nil {
		return nil, errors.New("speechseg: model loader is required")
	}
	o := factoryOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.mp == nil {
		o.mp = otel.GetMeterProvider()
	}
	met, err := newSessionMetrics(o.mp)
	if err != nil {
		return nil, fmt.Errorf("speechseg: create metrics: %w", err)
	}

	log := o.logger.With("component", "speechseg")
	log.Info("loading speech classifier model")
	model, err := load(cfg)
	if err != nil {
		return nil, fmt.Errorf("speechseg: load model: %w", err)
	}
	log.Info("speech classifier model loaded",
		"sample_rate", cfg.SampleRate,
		"chunk_samples", cfg.ChunkSamples,
		"speech_pad_ms", cfg.SpeechPadMs,
		"threshold", cfg.Threshold,
	)
	return &Factory{cfg: cfg, model: model, log: log, met: met}, nil
}

// Config returns the configuration sessions are built with.
func (f *Factory) Config() Config {
	return f.cfg
}

// NewSession returns an idle session with empty buffers and its own classifier
// bound to the shared model.
func (f *Factory) NewSession(cb Callbacks) (*Session, error) {
	if cb.OnSpeechEnd == nil {
		return nil, ErrNoSpeechEndCallback
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return nil, ErrFactoryClosed
	}
	c, err := f.model.NewClassifier(f.cfg)
	if err != nil {
		return nil, fmt.Errorf("speechseg: new classifier: %w", err)
	}
	return newSession(f.cfg, cb, c, f.log, f.met), nil
}

// Ready reports whether the factory can still hand out sessions.
func (f *Factory) Ready() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return !f.closed
}

// Close releases the shared model. Sessions created earlier must not be used
// afterwards. Calling Close more than once is safe.
func (f *Factory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	return f.model.Close()
}
