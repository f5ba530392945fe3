package speechseg

import (
	"fmt"
	"math"
)

// Energy scoring maps frame RMS (in [0, 1] full scale) linearly onto a
// probability: energyFloor and below is 0, energyCeil and above is 1.
const (
	energyFloor = 0.005
	energyCeil  = 0.05
)

// LoadEnergy returns a ModelLoader for the pure-Go RMS classifier. It needs no
// model file and runs anywhere, which makes it the development backend.
func LoadEnergy() ModelLoader {
	return func(cfg Config) (Model, error) {
		return energyModel{}, nil
	}
}

type energyModel struct{}

func (energyModel) NewClassifier(cfg Config) (Classifier, error) {
	return &energyClassifier{
		frameBytes: cfg.FrameBytes(),
		tracker:    newBoundaryTracker(cfg),
	}, nil
}

func (energyModel) Close() error { return nil }

type energyClassifier struct {
	frameBytes int
	tracker    *boundaryTracker
}

func (c *energyClassifier) Score(frame []byte) (Event, error) {
	if len(frame) != c.frameBytes {
		return Event{}, fmt.Errorf("energy: frame is %d bytes, want %d", len(frame), c.frameBytes)
	}
	prob := energyProbability(frameRMS(frame))
	return Event{Kind: c.tracker.observe(prob), Probability: prob}, nil
}

func (c *energyClassifier) ResetState() {
	c.tracker.reset()
}

// frameRMS returns the root-mean-square level of s16le PCM normalized to full
// scale. Returns 0 for frames shorter than one sample.
func frameRMS(pcm []byte) float64 {
	n := len(pcm) / BytesPerSample
	if n == 0 {
		return 0
	}
	var sum float64
	for i := range n {
		v := float64(int16(uint16(pcm[2*i])|uint16(pcm[2*i+1])<<8)) / 32768.0
		sum += v * v
	}
	return math.Sqrt(sum / float64(n))
}

func energyProbability(rms float64) float32 {
	switch {
	case rms <= energyFloor:
		return 0
	case rms >= energyCeil:
		return 1
	}
	return float32((rms - energyFloor) / (energyCeil - energyFloor))
}
