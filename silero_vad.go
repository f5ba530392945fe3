package speechseg

import (
	"errors"
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

const (
	sileroStateSize = 2 * 1 * 128
)

var errSileroFrame = errors.New("silero: frame size does not match ChunkSamples")

// ErrUnsupportedFormat is returned by the Silero loader for sample rate and
// chunk size combinations the model was not trained on.
var ErrUnsupportedFormat = errors.New("silero: unsupported format")

// ortInit guards the process-wide ONNX Runtime environment. The error is kept
// so later loads report the original failure.
var (
	ortInitOnce sync.Once
	ortInitErr  error
)

// SileroOptions locate the Silero VAD model and the ONNX Runtime library.
type SileroOptions struct {
	ModelPath   string // path to silero_vad.onnx
	LibraryPath string // optional; see resolveOrtLib for the fallback order
}

// LoadSilero returns a ModelLoader for Silero VAD v5. Silero accepts 512-sample
// frames at 16 kHz and 256-sample frames at 8 kHz only.
func LoadSilero(opts SileroOptions) ModelLoader {
	return func(cfg Config) (Model, error) {
		contextSamples, err := sileroContextSamples(cfg)
		if err != nil {
			return nil, err
		}
		if opts.ModelPath == "" {
			return nil, errors.New("silero: model path is required")
		}
		if _, err := os.Stat(opts.ModelPath); err != nil {
			if os.IsNotExist(err) {
				return nil, errors.New("silero: model file not found: " + opts.ModelPath)
			}
			return nil, fmt.Errorf("silero: %w", err)
		}
		if err := initOrt(opts.LibraryPath); err != nil {
			return nil, err
		}
		sess, err := ort.NewDynamicAdvancedSession(opts.ModelPath,
			[]string{"input", "state", "sr"},
			[]string{"output", "stateN"},
			nil)
		if err != nil {
			return nil, fmt.Errorf("silero: create session: %w", err)
		}
		return &sileroModel{session: sess, contextSamples: contextSamples}, nil
	}
}

func sileroContextSamples(cfg Config) (int, error) {
	switch {
	case cfg.SampleRate == 16000 && cfg.ChunkSamples == 512:
		return 64, nil
	case cfg.SampleRate == 8000 && cfg.ChunkSamples == 256:
		return 32, nil
	}
	return 0, fmt.Errorf("%w %d Hz / %d samples (want 16000/512 or 8000/256)",
		ErrUnsupportedFormat, cfg.SampleRate, cfg.ChunkSamples)
}

func initOrt(libPath string) error {
	ortInitOnce.Do(func() {
		if ort.IsInitialized() {
			return
		}
		path, err := resolveOrtLib(libPath, os.LookupEnv, candidateBaseDirs())
		if err != nil {
			ortInitErr = err
			return
		}
		if path != "" {
			ort.SetSharedLibraryPath(path)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			ortInitErr = fmt.Errorf("onnxruntime: initialize: %w", err)
		}
	})
	return ortInitErr
}

// sileroModel is the shared ONNX session. DynamicAdvancedSession takes its
// tensors per Run call, so one session serves every classifier concurrently.
type sileroModel struct {
	session        *ort.DynamicAdvancedSession
	contextSamples int
}

func (m *sileroModel) NewClassifier(cfg Config) (Classifier, error) {
	c := &sileroClassifier{
		session:    m.session,
		frameBytes: cfg.FrameBytes(),
		context:    make([]float32, m.contextSamples),
		samples:    make([]float32, cfg.ChunkSamples),
		tracker:    newBoundaryTracker(cfg),
	}
	if err := c.allocate(cfg, m.contextSamples); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (m *sileroModel) Close() error {
	return m.session.Destroy()
}

// sileroClassifier is the per-session half: tensors, 64-sample context, RNN
// state and boundary hysteresis. Not safe for concurrent use.
type sileroClassifier struct {
	session    *ort.DynamicAdvancedSession
	frameBytes int

	input  *ort.Tensor[float32] // (1, context+chunk)
	state  *ort.Tensor[float32] // (2, 1, 128)
	sr     *ort.Tensor[int64]   // (1,)
	output *ort.Tensor[float32] // (1, 1) speech prob
	stateN *ort.Tensor[float32] // (2, 1, 128) new state

	context []float32
	samples []float32
	tracker *boundaryTracker
}

func (c *sileroClassifier) allocate(cfg Config, contextSamples int) error {
	var err error
	if c.input, err = ort.NewEmptyTensor[float32](ort.NewShape(1, int64(contextSamples+cfg.ChunkSamples))); err != nil {
		return fmt.Errorf("silero: create input tensor: %w", err)
	}
	if c.state, err = ort.NewTensor(ort.NewShape(2, 1, 128), make([]float32, sileroStateSize)); err != nil {
		return fmt.Errorf("silero: create state tensor: %w", err)
	}
	if c.sr, err = ort.NewTensor(ort.NewShape(1), []int64{int64(cfg.SampleRate)}); err != nil {
		return fmt.Errorf("silero: create sr tensor: %w", err)
	}
	if c.output, err = ort.NewEmptyTensor[float32](ort.NewShape(1, 1)); err != nil {
		return fmt.Errorf("silero: create output tensor: %w", err)
	}
	if c.stateN, err = ort.NewEmptyTensor[float32](ort.NewShape(2, 1, 128)); err != nil {
		return fmt.Errorf("silero: create stateN tensor: %w", err)
	}
	return nil
}

// Score runs one inference and feeds the probability to the boundary tracker.
func (c *sileroClassifier) Score(frame []byte) (Event, error) {
	if len(frame) != c.frameBytes {
		return Event{}, errSileroFrame
	}
	c.samples = pcmToFloat32(c.samples, frame)

	in := c.input.GetData()
	n := len(c.context)
	copy(in[:n], c.context)
	copy(in[n:], c.samples)

	if err := c.session.Run(
		[]ort.Value{c.input, c.state, c.sr},
		[]ort.Value{c.output, c.stateN},
	); err != nil {
		return Event{}, fmt.Errorf("silero: inference: %w", err)
	}
	// Context for the next window is the tail of this one.
	copy(c.context, in[len(in)-n:])
	copy(c.state.GetData(), c.stateN.GetData())

	prob := c.output.GetData()[0]
	return Event{Kind: c.tracker.observe(prob), Probability: prob}, nil
}

func (c *sileroClassifier) ResetState() {
	clear(c.context)
	if c.state != nil {
		c.state.ZeroContents()
	}
	c.tracker.reset()
}

// Close releases the session-local tensors. The shared model is untouched.
func (c *sileroClassifier) Close() error {
	if c.input != nil {
		_ = c.input.Destroy()
		c.input = nil
	}
	if c.state != nil {
		_ = c.state.Destroy()
		c.state = nil
	}
	if c.sr != nil {
		_ = c.sr.Destroy()
		c.sr = nil
	}
	if c.output != nil {
		_ = c.output.Destroy()
		c.output = nil
	}
	if c.stateN != nil {
		_ = c.stateN.Destroy()
		c.stateN = nil
	}
	return nil
}
