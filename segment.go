package speechseg

// historyWindow keeps the most recent capacity bytes of audio. It supplies the
// pre-roll that is prepended to a segment when speech starts. Pure logic; no
// classifier, no callbacks.
type historyWindow struct {
	capacity int
	buf      []byte
}

func newHistoryWindow(capacity int) *historyWindow {
	if capacity < 0 {
		capacity = 0
	}
	return &historyWindow{
		capacity: capacity,
		buf:      make([]byte, 0, capacity),
	}
}

// push appends frame and evicts the oldest bytes until len <= capacity.
func (h *historyWindow) push(frame []byte) {
	if h.capacity == 0 {
		return
	}
	if len(frame) >= h.capacity {
		h.buf = append(h.buf[:0], frame[len(frame)-h.capacity:]...)
		return
	}
	if over := len(h.buf) + len(frame) - h.capacity; over > 0 {
		kept := copy(h.buf, h.buf[over:])
		h.buf = h.buf[:kept]
	}
	h.buf = append(h.buf, frame...)
}

// drain returns a copy of the current contents and empties the window.
func (h *historyWindow) drain() []byte {
	out := make([]byte, len(h.buf))
	copy(out, h.buf)
	h.buf = h.buf[:0]
	return out
}

func (h *historyWindow) clear() {
	h.buf = h.buf[:0]
}

func (h *historyWindow) len() int {
	return len(h.buf)
}

// segmentAccumulator holds the bytes of the utterance in progress. It is
// unbounded; callers that need a cap enforce it outside the session.
type segmentAccumulator struct {
	buf []byte
}

func (a *segmentAccumulator) append(b []byte) {
	a.buf = append(a.buf, b...)
}

// take hands over the buffered bytes and leaves the accumulator empty. The
// returned slice is not reused by the accumulator.
func (a *segmentAccumulator) take() []byte {
	out := a.buf
	a.buf = nil
	if out == nil {
		out = []byte{}
	}
	return out
}

func (a *segmentAccumulator) clear() {
	a.buf = a.buf[:0]
}

func (a *segmentAccumulator) len() int {
	return len(a.buf)
}
