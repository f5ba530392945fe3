package observe

import (
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/cortexswarm/speechseg-go/speechsegd"

var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// Metrics holds the application-level instruments. Segmentation counters live
// in the core package and share the same MeterProvider.
type Metrics struct {
	// ActiveConnections tracks open /vad WebSocket connections.
	ActiveConnections metric.Int64UpDownCounter

	// STTDuration tracks transcription latency per segment.
	STTDuration metric.Float64Histogram

	// RecordsStored counts records written to the database.
	RecordsStored metric.Int64Counter

	// SegmentErrors counts segments that could not be recorded,
	// transcribed or stored. Use with attribute.String("stage", ...).
	SegmentErrors metric.Int64Counter

	// HTTPRequestDuration tracks non-streaming HTTP requests.
	HTTPRequestDuration metric.Float64Histogram
}

// NewMetrics creates all instruments from mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.ActiveConnections, err = m.Int64UpDownCounter("speechsegd.connections.active",
		metric.WithDescription("Open audio streaming connections."),
	); err != nil {
		return nil, err
	}
	if met.STTDuration, err = m.Float64Histogram("speechsegd.stt.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.RecordsStored, err = m.Int64Counter("speechsegd.records.stored",
		metric.WithDescription("Transcribed segments persisted to the record store."),
	); err != nil {
		return nil, err
	}
	if met.SegmentErrors, err = m.Int64Counter("speechsegd.segment.errors",
		metric.WithDescription("Segments whose handling failed, by stage."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("speechsegd.http.request.duration",
		metric.WithDescription("HTTP request processing time."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	return met, nil
}
