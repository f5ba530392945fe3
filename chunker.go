package speechseg

// frameChunker splits an arbitrary byte stream into fixed-size frames. Bytes
// that do not fill a whole frame are carried over to the next feed.
type frameChunker struct {
	frameBytes int
	rem        []byte
}

func newFrameChunker(frameBytes int) *frameChunker {
	return &frameChunker{
		frameBytes: frameBytes,
		rem:        make([]byte, 0, frameBytes*2),
	}
}

// feed appends b and returns every complete frame now available, oldest first.
// Returned frames are fresh copies; the caller may keep them.
func (c *frameChunker) feed(b []byte) [][]byte {
	c.rem = append(c.rem, b...)
	n := len(c.rem) / c.frameBytes
	if n == 0 {
		return nil
	}
	frames := make([][]byte, n)
	for i := range frames {
		frame := make([]byte, c.frameBytes)
		copy(frame, c.rem[i*c.frameBytes:])
		frames[i] = frame
	}
	left := copy(c.rem, c.rem[n*c.frameBytes:])
	c.rem = c.rem[:left]
	return frames
}

// unread puts frames back in front of the remainder, oldest first, so the
// next feed returns them again before any new bytes.
func (c *frameChunker) unread(frames [][]byte) {
	if len(frames) == 0 {
		return
	}
	back := make([]byte, 0, len(frames)*c.frameBytes+len(c.rem))
	for _, f := range frames {
		back = append(back, f...)
	}
	c.rem = append(back, c.rem...)
}

// pending reports how many bytes are waiting for a frame to fill.
func (c *frameChunker) pending() int {
	return len(c.rem)
}

func (c *frameChunker) reset() {
	c.rem = c.rem[:0]
}
