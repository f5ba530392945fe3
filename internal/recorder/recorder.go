// Package recorder turns finalized speech segments into stored records: the
// PCM is written as a WAV file, transcribed, and optionally persisted.
package recorder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/cortexswarm/speechseg-go/internal/observe"
	"github.com/cortexswarm/speechseg-go/internal/store"
	"github.com/cortexswarm/speechseg-go/internal/stt"
)

// Store persists records. *store.Store satisfies it.
type Store interface {
	AddRecord(ctx context.Context, rec *store.Record) error
}

// Options configures a Recorder. Store and Metrics may be nil.
type Options struct {
	Dir         string
	SampleRate  int
	Transcriber stt.Transcriber
	Store       Store
	Metrics     *observe.Metrics
	Logger      *slog.Logger
}

// Recorder handles segments for any number of connections concurrently.
type Recorder struct {
	dir        string
	sampleRate int
	stt        stt.Transcriber
	store      Store
	met        *observe.Metrics
	log        *slog.Logger
	now        func() time.Time
}

// New validates opts and builds a Recorder.
func New(opts Options) (*Recorder, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("recorder: dir is required")
	}
	if opts.SampleRate <= 0 {
		return nil, fmt.Errorf("recorder: sample rate must be positive, got %d", opts.SampleRate)
	}
	if opts.Transcriber == nil {
		return nil, fmt.Errorf("recorder: transcriber is required")
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Recorder{
		dir:        opts.Dir,
		sampleRate: opts.SampleRate,
		stt:        opts.Transcriber,
		store:      opts.Store,
		met:        opts.Metrics,
		log:        log.With("component", "recorder"),
		now:        time.Now,
	}, nil
}

// Handle writes pcm under a dated directory, transcribes it and stores the
// result. The returned record is complete even when no store is configured.
func (r *Recorder) Handle(ctx context.Context, pcm []byte) (*store.Record, error) {
	ctx, span := observe.StartSpan(ctx, "recorder.Handle")
	defer span.End()

	now := r.now()
	rec := &store.Record{
		ID:         uuid.NewString(),
		RecordedAt: now.UTC(),
		Duration:   time.Duration(len(pcm)/2) * time.Second / time.Duration(r.sampleRate),
	}
	span.SetAttributes(
		attribute.String("record.id", rec.ID),
		attribute.Int("segment.bytes", len(pcm)),
	)
	log := observe.Logger(ctx, r.log).With("record_id", rec.ID)

	dayDir := filepath.Join(r.dir, now.Format("2006-01-02"))
	if err := os.MkdirAll(dayDir, 0o755); err != nil {
		return nil, r.fail(ctx, span, "write", fmt.Errorf("recorder: mkdir: %w", err))
	}
	rec.AudioURL = filepath.Join(dayDir, fmt.Sprintf("%s_%s.wav", now.Format("150405.000"), rec.ID[:8]))
	if err := WriteWAV(rec.AudioURL, pcm, r.sampleRate); err != nil {
		return nil, r.fail(ctx, span, "write", err)
	}

	start := time.Now()
	text, err := r.stt.Transcribe(ctx, rec.AudioURL)
	if r.met != nil {
		r.met.STTDuration.Record(ctx, time.Since(start).Seconds())
	}
	if err != nil {
		return nil, r.fail(ctx, span, "transcribe", fmt.Errorf("recorder: transcribe: %w", err))
	}
	rec.Transcription = text

	if r.store != nil {
		if err := r.store.AddRecord(ctx, rec); err != nil {
			return nil, r.fail(ctx, span, "store", err)
		}
		if r.met != nil {
			r.met.RecordsStored.Add(ctx, 1)
		}
	}

	log.Info("segment recorded", "path", rec.AudioURL, "duration", rec.Duration, "chars", len(text))
	return rec, nil
}

func (r *Recorder) fail(ctx context.Context, span trace.Span, stage string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, stage)
	if r.met != nil {
		r.met.SegmentErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage)))
	}
	observe.Logger(ctx, r.log).Error("segment handling failed", "stage", stage, "error", err)
	return err
}
