package speechseg

import (
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope for segmentation metrics.
const meterName = "github.com/cortexswarm/speechseg-go"

// segmentBuckets are histogram boundaries in seconds for utterance lengths.
var segmentBuckets = []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60, 120}

// sessionMetrics is shared by every session of one Factory. OTel instruments
// are safe for concurrent use.
type sessionMetrics struct {
	framesScored     metric.Int64Counter
	classifierErrors metric.Int64Counter
	segmentsEmitted  metric.Int64Counter
	callbackErrors   metric.Int64Counter
	segmentDuration  metric.Float64Histogram
}

func newSessionMetrics(mp metric.MeterProvider) (*sessionMetrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &sessionMetrics{}

	if met.framesScored, err = m.Int64Counter("speechseg.frames.scored",
		metric.WithDescription("Frames handed to the speech classifier."),
	); err != nil {
		return nil, err
	}
	if met.classifierErrors, err = m.Int64Counter("speechseg.classifier.errors",
		metric.WithDescription("Frames whose scoring failed and were treated as no event."),
	); err != nil {
		return nil, err
	}
	if met.segmentsEmitted, err = m.Int64Counter("speechseg.segments.emitted",
		metric.WithDescription("Finalized speech segments handed to the emission callback."),
	); err != nil {
		return nil, err
	}
	if met.callbackErrors, err = m.Int64Counter("speechseg.callback.errors",
		metric.WithDescription("Emission callbacks that returned an error."),
	); err != nil {
		return nil, err
	}
	if met.segmentDuration, err = m.Float64Histogram("speechseg.segment.duration",
		metric.WithDescription("Audio length of emitted segments, padding included."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(segmentBuckets...),
	); err != nil {
		return nil, err
	}
	return met, nil
}
