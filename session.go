package speechseg

import (
	"context"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// State is the speaking/idle state of a Session.
type State int

const (
	Idle State = iota
	Speaking
)

func (s State) String() string {
	if s == Speaking {
		return "speaking"
	}
	return "idle"
}

// BufferStats is a snapshot of a session's buffered byte counts.
type BufferStats struct {
	Pending int // bytes waiting in the chunker for a full frame
	History int // bytes of pre-roll in the history window
	Segment int // bytes of the utterance in progress
}

// Session isolates speech segments from one audio stream. It is single-threaded
// and not goroutine-safe; the owning connection must serialize Process and
// Reset. Sessions share nothing mutable with each other.
type Session struct {
	cfg        Config
	cb         Callbacks
	classifier Classifier
	log        *slog.Logger
	met        *sessionMetrics

	chunker *frameChunker
	history *historyWindow
	segment segmentAccumulator
	state   State
}

func newSession(cfg Config, cb Callbacks, c Classifier, log *slog.Logger, met *sessionMetrics) *Session {
	return &Session{
		cfg:        cfg,
		cb:         cb,
		classifier: c,
		log:        log,
		met:        met,
		chunker:    newFrameChunker(cfg.FrameBytes()),
		history:    newHistoryWindow(cfg.PadBytes()),
	}
}

// Process ingests any number of PCM bytes. Complete frames are scored in
// arrival order; a trailing partial frame is kept for the next call.
//
// When a frame ends an utterance, OnSpeechEnd runs before the next frame is
// scored. Its error is returned immediately; frames after the end frame stay
// buffered and are scored by the next call, and the finished segment is not
// redelivered. If ctx is done, Process stops between frames, drops the
// unscored frames and returns ctx.Err().
func (s *Session) Process(ctx context.Context, pcm []byte) error {
	frames := s.chunker.feed(pcm)
	for i, frame := range frames {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.processFrame(ctx, frame); err != nil {
			if ctx.Err() == nil {
				s.chunker.unread(frames[i+1:])
			}
			return err
		}
	}
	return nil
}

func (s *Session) processFrame(ctx context.Context, frame []byte) error {
	ev, err := s.classifier.Score(frame)
	s.met.framesScored.Add(ctx, 1)
	if err != nil {
		s.met.classifierErrors.Add(ctx, 1)
		s.log.Warn("frame scoring failed, treating as no event", "error", err)
		ev = Event{Kind: EventNone}
	}

	switch {
	case ev.Kind == EventStart && s.state == Idle:
		// Pre-roll is the window as it stood before this frame; the frame
		// itself follows it exactly once.
		s.state = Speaking
		s.segment.append(s.history.drain())
		s.segment.append(frame)
		s.log.Debug("speech start", "probability", ev.Probability, "padding_bytes", s.segment.len()-len(frame))
		if s.cb.OnSpeechStart != nil {
			s.cb.OnSpeechStart()
		}
		return nil

	case ev.Kind == EventEnd && s.state == Speaking:
		s.segment.append(frame)
		return s.finish(ctx)
	}

	if s.state == Speaking {
		s.segment.append(frame)
		return nil
	}
	// Only audio outside a segment can become pre-roll, which keeps
	// consecutive segments disjoint.
	s.history.push(frame)
	return nil
}

// finish hands the utterance to OnSpeechEnd and readies the session for the
// next one. Buffers and classifier state are cleared before the callback runs
// so that a failing consumer cannot leave stale audio behind.
func (s *Session) finish(ctx context.Context) error {
	seg := s.segment.take()
	s.state = Idle
	s.history.clear()
	s.classifier.ResetState()

	dur := s.duration(len(seg))
	s.met.segmentsEmitted.Add(ctx, 1)
	s.met.segmentDuration.Record(ctx, dur.Seconds())
	s.log.Debug("speech end", "bytes", len(seg), "duration", dur)

	start := time.Now()
	if err := s.cb.OnSpeechEnd(ctx, seg); err != nil {
		s.met.callbackErrors.Add(ctx, 1, metric.WithAttributes(attribute.Bool("canceled", ctx.Err() != nil)))
		return err
	}
	s.log.Debug("segment delivered", "wait", time.Since(start))
	return nil
}

// Reset discards all buffered audio, returns to Idle, and clears the
// classifier state. It is safe to call repeatedly.
func (s *Session) Reset() {
	s.chunker.reset()
	s.history.clear()
	s.segment.clear()
	s.state = Idle
	s.classifier.ResetState()
}

// Close resets the session and releases classifier resources such as
// session-local tensors. The session must not be used afterwards.
func (s *Session) Close() error {
	s.Reset()
	if c, ok := s.classifier.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// State reports whether the session is inside an utterance.
func (s *Session) State() State {
	return s.state
}

// Buffered reports how many bytes each internal buffer holds.
func (s *Session) Buffered() BufferStats {
	return BufferStats{
		Pending: s.chunker.pending(),
		History: s.history.len(),
		Segment: s.segment.len(),
	}
}

func (s *Session) duration(n int) time.Duration {
	samples := n / BytesPerSample
	return time.Duration(samples) * time.Second / time.Duration(s.cfg.SampleRate)
}
