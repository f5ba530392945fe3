package speechseg

import "encoding/binary"

// pcmToFloat32 converts s16le PCM to float32 samples in [-1, 1). Dividing by
// 32768 maps -32768 to exactly -1. A trailing odd byte is ignored.
func pcmToFloat32(dst []float32, pcm []byte) []float32 {
	n := len(pcm) / BytesPerSample
	if cap(dst) < n {
		dst = make([]float32, n)
	}
	dst = dst[:n]
	for i := range n {
		dst[i] = float32(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) / 32768.0
	}
	return dst
}
