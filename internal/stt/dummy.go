package stt

import (
	"context"
	"log/slog"
	"time"
)

// DummyText is what the dummy backend returns for every segment.
const DummyText = "this is a test result from the dummy stt engine"

// Dummy pretends to transcribe: it waits Delay and returns DummyText.
type Dummy struct {
	Delay time.Duration
	log   *slog.Logger
}

// NewDummy returns a Dummy with a 100 ms simulated processing delay.
func NewDummy(log *slog.Logger) *Dummy {
	if log == nil {
		log = slog.Default()
	}
	return &Dummy{Delay: 100 * time.Millisecond, log: log}
}

func (d *Dummy) Transcribe(ctx context.Context, wavPath string) (string, error) {
	d.log.Debug("dummy stt processing", "file", wavPath)
	if d.Delay > 0 {
		t := time.NewTimer(d.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-t.C:
		}
	}
	return DummyText, nil
}
