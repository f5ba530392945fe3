package recorder

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/youpy/go-wav"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/cortexswarm/speechseg-go/internal/observe"
	"github.com/cortexswarm/speechseg-go/internal/store"
)

type fakeSTT struct {
	text  string
	err   error
	paths []string
}

func (f *fakeSTT) Transcribe(_ context.Context, path string) (string, error) {
	f.paths = append(f.paths, path)
	return f.text, f.err
}

type fakeStore struct {
	records []*store.Record
	err     error
}

func (f *fakeStore) AddRecord(_ context.Context, rec *store.Record) error {
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, rec)
	return nil
}

func ramp(n int) []byte {
	b := make([]byte, n*2)
	for i := range n {
		binary.LittleEndian.PutUint16(b[i*2:], uint16(int16(i*100-16000)))
	}
	return b
}

func readWAV(t *testing.T, path string) ([]byte, uint32) {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	r := wav.NewReader(f)
	format, err := r.Format()
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	if format.NumChannels != 1 || format.BitsPerSample != 16 {
		t.Fatalf("format = %+v, want mono 16-bit", format)
	}
	var pcm []byte
	for {
		samples, err := r.ReadSamples()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("ReadSamples: %v", err)
		}
		for _, s := range samples {
			pcm = binary.LittleEndian.AppendUint16(pcm, uint16(int16(s.Values[0])))
		}
	}
	return pcm, format.SampleRate
}

func TestWriteWAVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seg.wav")
	want := ramp(320)
	if err := WriteWAV(path, append(want, 0x01), 16000); err != nil {
		t.Fatalf("WriteWAV: %v", err)
	}
	got, rate := readWAV(t, path)
	if rate != 16000 {
		t.Errorf("sample rate = %d", rate)
	}
	if string(got) != string(want) {
		t.Errorf("round trip mismatch: got %d bytes, want %d", len(got), len(want))
	}
}

func TestWriteWAVBadPath(t *testing.T) {
	if err := WriteWAV(filepath.Join(t.TempDir(), "missing", "x.wav"), ramp(4), 16000); err == nil {
		t.Error("expected error for missing directory")
	}
}

func newTestRecorder(t *testing.T, tr *fakeSTT, st Store) (*Recorder, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	met, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatal(err)
	}
	r, err := New(Options{
		Dir:         t.TempDir(),
		SampleRate:  16000,
		Transcriber: tr,
		Store:       st,
		Metrics:     met,
		Logger:      slog.New(slog.DiscardHandler),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r.now = func() time.Time { return time.Date(2026, 10, 14, 9, 30, 15, 250e6, time.UTC) }
	return r, reader
}

func counters(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatal(err)
	}
	out := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					out[m.Name] += dp.Value
				}
			case metricdata.Histogram[float64]:
				for _, dp := range data.DataPoints {
					out[m.Name] += int64(dp.Count)
				}
			}
		}
	}
	return out
}

func TestHandle(t *testing.T) {
	tr := &fakeSTT{text: "turn left"}
	st := &fakeStore{}
	r, reader := newTestRecorder(t, tr, st)

	pcm := ramp(8000)
	rec, err := r.Handle(context.Background(), pcm)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if rec.Duration != 500*time.Millisecond {
		t.Errorf("Duration = %v, want 500ms", rec.Duration)
	}
	if rec.Transcription != "turn left" {
		t.Errorf("Transcription = %q", rec.Transcription)
	}
	wantDir := filepath.Join(r.dir, "2026-10-14")
	if filepath.Dir(rec.AudioURL) != wantDir {
		t.Errorf("AudioURL = %q, want under %q", rec.AudioURL, wantDir)
	}
	if base := filepath.Base(rec.AudioURL); !strings.HasPrefix(base, "093015.250_") || !strings.HasSuffix(base, ".wav") {
		t.Errorf("file name = %q", base)
	}
	if len(tr.paths) != 1 || tr.paths[0] != rec.AudioURL {
		t.Errorf("transcribed %v", tr.paths)
	}
	if len(st.records) != 1 || st.records[0] != rec {
		t.Errorf("stored %v", st.records)
	}
	got, _ := readWAV(t, rec.AudioURL)
	if string(got) != string(pcm) {
		t.Error("WAV content differs from segment")
	}

	c := counters(t, reader)
	if c["speechsegd.records.stored"] != 1 || c["speechsegd.stt.duration"] != 1 {
		t.Errorf("metrics = %v", c)
	}
	if c["speechsegd.segment.errors"] != 0 {
		t.Errorf("unexpected segment errors: %v", c)
	}
}

func TestHandleWithoutStore(t *testing.T) {
	r, reader := newTestRecorder(t, &fakeSTT{text: "ok"}, nil)
	rec, err := r.Handle(context.Background(), ramp(160))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if rec.ID == "" || rec.Transcription != "ok" {
		t.Errorf("record = %+v", rec)
	}
	if c := counters(t, reader); c["speechsegd.records.stored"] != 0 {
		t.Errorf("records stored without a store: %v", c)
	}
}

func TestHandleErrors(t *testing.T) {
	errSTT := errors.New("whisper offline")
	errDB := errors.New("db down")

	t.Run("transcribe", func(t *testing.T) {
		st := &fakeStore{}
		r, reader := newTestRecorder(t, &fakeSTT{err: errSTT}, st)
		if _, err := r.Handle(context.Background(), ramp(160)); !errors.Is(err, errSTT) {
			t.Fatalf("err = %v, want %v", err, errSTT)
		}
		if len(st.records) != 0 {
			t.Error("record stored after transcription failure")
		}
		if c := counters(t, reader); c["speechsegd.segment.errors"] != 1 {
			t.Errorf("metrics = %v", c)
		}
	})

	t.Run("store", func(t *testing.T) {
		r, reader := newTestRecorder(t, &fakeSTT{text: "x"}, &fakeStore{err: errDB})
		if _, err := r.Handle(context.Background(), ramp(160)); !errors.Is(err, errDB) {
			t.Fatalf("err = %v, want %v", err, errDB)
		}
		if c := counters(t, reader); c["speechsegd.segment.errors"] != 1 || c["speechsegd.records.stored"] != 0 {
			t.Errorf("metrics = %v", c)
		}
	})

	t.Run("write", func(t *testing.T) {
		r, _ := newTestRecorder(t, &fakeSTT{text: "x"}, nil)
		blocker := filepath.Join(r.dir, "2026-10-14")
		if err := os.WriteFile(blocker, nil, 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := r.Handle(context.Background(), ramp(160)); err == nil {
			t.Fatal("expected error when the day directory is a file")
		}
	})
}

func TestNewValidates(t *testing.T) {
	tr := &fakeSTT{}
	for name, opts := range map[string]Options{
		"no dir":         {SampleRate: 16000, Transcriber: tr},
		"no rate":        {Dir: "x", Transcriber: tr},
		"no transcriber": {Dir: "x", SampleRate: 16000},
	} {
		if _, err := New(opts); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}
