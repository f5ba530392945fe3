package speechseg

import "context"

// Callbacks are invoked synchronously from the goroutine that calls
// Session.Process. OnSpeechEnd is required; the other fields may be nil.
type Callbacks struct {
	// OnSpeechStart fires when the session moves from Idle to Speaking.
	OnSpeechStart func()

	// OnSpeechEnd receives one finalized segment: mono 16-bit little-endian PCM
	// at the configured sample rate, padding included. Process waits for it to
	// return before scoring the next frame, so a slow consumer throttles
	// ingestion for its own session only. The slice is owned by the callee.
	//
	// A returned error is passed up to the Process caller. The segment is not
	// redelivered and the session stays usable.
	OnSpeechEnd func(ctx context.Context, segment []byte) error
}
