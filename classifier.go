package speechseg

// EventKind is the boundary signal a Classifier reports for one frame.
type EventKind int

const (
	EventNone EventKind = iota
	EventStart
	EventEnd
)

func (k EventKind) String() string {
	switch k {
	case EventStart:
		return "start"
	case EventEnd:
		return "end"
	default:
		return "none"
	}
}

// Event is the result of scoring one frame.
type Event struct {
	Kind        EventKind
	Probability float32
}

// Classifier scores frames for a single session. It owns its hysteresis and
// timing state, which the session clears through ResetState after every
// finished utterance and on Reset. A Classifier is not safe for concurrent use.
//
// The session relies on this contract: at most one EventStart and then at most
// one EventEnd per utterance, as long as ResetState is called after each
// completed utterance.
type Classifier interface {
	// Score classifies exactly one frame of Config.FrameBytes bytes. An error
	// is treated by the session as EventNone for that frame.
	Score(frame []byte) (Event, error)
	ResetState()
}

// Model is the shared, read-only half of a classifier backend. It is loaded
// once per process and hands out session-local Classifiers. Implementations
// must allow NewClassifier and the resulting classifiers' Score to run
// concurrently from different goroutines.
type Model interface {
	NewClassifier(cfg Config) (Classifier, error)
	Close() error
}

// ModelLoader loads a Model. Factory calls it exactly once.
type ModelLoader func(cfg Config) (Model, error)
