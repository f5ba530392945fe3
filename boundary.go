package speechseg

// negThresholdOffset is how far below the speech threshold a probability must
// fall before it counts toward ending an utterance.
const negThresholdOffset = 0.15

// boundaryTracker turns per-frame speech probabilities into start/end events.
// Start fires on the first frame at or above threshold. End fires once the
// probability has stayed below threshold-negThresholdOffset for minSilence
// samples, measured from the first quiet frame; any frame back at threshold
// cancels a pending end.
type boundaryTracker struct {
	threshold     float32
	negThreshold  float32
	minSilence    int // samples
	frameSamples  int
	triggered     bool
	tempEnd       int // sample position of the first quiet frame, 0 when none
	currentSample int
}

func newBoundaryTracker(cfg Config) *boundaryTracker {
	neg := cfg.Threshold - negThresholdOffset
	if neg < 0 {
		neg = 0
	}
	return &boundaryTracker{
		threshold:    cfg.Threshold,
		negThreshold: neg,
		minSilence:   cfg.MinSilenceMs * cfg.SampleRate / 1000,
		frameSamples: cfg.ChunkSamples,
	}
}

func (t *boundaryTracker) observe(prob float32) EventKind {
	t.currentSample += t.frameSamples

	if prob >= t.threshold && t.tempEnd != 0 {
		t.tempEnd = 0
	}
	if prob >= t.threshold && !t.triggered {
		t.triggered = true
		return EventStart
	}
	if prob < t.negThreshold && t.triggered {
		if t.tempEnd == 0 {
			t.tempEnd = t.currentSample
		}
		if t.currentSample-t.tempEnd < t.minSilence {
			return EventNone
		}
		t.tempEnd = 0
		t.triggered = false
		return EventEnd
	}
	return EventNone
}

func (t *boundaryTracker) reset() {
	t.triggered = false
	t.tempEnd = 0
	t.currentSample = 0
}
