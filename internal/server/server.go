// Package server exposes the segmentation core over WebSocket. Each
// connection streams raw mono 16-bit little-endian PCM as binary messages and
// receives one JSON event per finalized segment.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	speechseg "github.com/cortexswarm/speechseg-go"
	"github.com/cortexswarm/speechseg-go/internal/observe"
	"github.com/cortexswarm/speechseg-go/internal/store"
)

const writeTimeout = 5 * time.Second

// Event types sent to clients.
const (
	EventSegment = "segment"
	EventError   = "error"
)

// Event is the JSON message sent after each segment.
type Event struct {
	Type       string `json:"type"`
	ID         string `json:"id,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`
	Bytes      int    `json:"bytes,omitempty"`
	AudioPath  string `json:"audio_path,omitempty"`
	Text       string `json:"text,omitempty"`
	Message    string `json:"message,omitempty"`
}

// SessionFactory builds one segmentation session per connection.
type SessionFactory interface {
	NewSession(cb speechseg.Callbacks) (*speechseg.Session, error)
}

// SegmentHandler turns a finalized segment into a record.
type SegmentHandler interface {
	Handle(ctx context.Context, pcm []byte) (*store.Record, error)
}

// Options configures a Handler. Without Segments, clients only get the size
// and duration of each segment; SampleRate is needed for the latter.
type Options struct {
	Factory        SessionFactory
	Segments       SegmentHandler
	SampleRate     int
	Metrics        *observe.Metrics
	Logger         *slog.Logger
	ReadLimit      int64
	OriginPatterns []string
}

// Handler serves the /vad WebSocket endpoint.
type Handler struct {
	factory   SessionFactory
	segments  SegmentHandler
	rate      int
	met       *observe.Metrics
	log       *slog.Logger
	readLimit int64
	origins   []string
}

// New builds a Handler. Factory and Metrics are required.
func New(opts Options) *Handler {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		factory:   opts.Factory,
		segments:  opts.Segments,
		rate:      opts.SampleRate,
		met:       opts.Metrics,
		log:       log.With("component", "server"),
		readLimit: opts.ReadLimit,
		origins:   opts.OriginPatterns,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.origins})
	if err != nil {
		h.log.Warn("websocket accept failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	defer conn.CloseNow()
	if h.readLimit > 0 {
		conn.SetReadLimit(h.readLimit)
	}

	ctx := r.Context()
	log := h.log.With("remote", r.RemoteAddr)

	sess, err := h.factory.NewSession(speechseg.Callbacks{
		OnSpeechStart: func() { log.Debug("speech started") },
		OnSpeechEnd: func(ctx context.Context, pcm []byte) error {
			return h.deliver(ctx, conn, log, pcm)
		},
	})
	if err != nil {
		log.Error("create session", "error", err)
		conn.Close(websocket.StatusInternalError, "session unavailable")
		return
	}
	defer func() {
		sess.Reset()
		if err := sess.Close(); err != nil {
			log.Warn("close session", "error", err)
		}
	}()

	h.met.ActiveConnections.Add(ctx, 1)
	defer h.met.ActiveConnections.Add(context.WithoutCancel(ctx), -1)
	log.Info("connection accepted")

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				log.Info("connection closed")
			default:
				if errors.Is(err, context.Canceled) {
					log.Info("connection closed")
				} else {
					log.Warn("connection read failed", "error", err)
				}
			}
			return
		}
		if typ != websocket.MessageBinary {
			continue
		}
		if err := sess.Process(ctx, data); err != nil {
			log.Warn("segmentation stopped", "error", err)
			conn.Close(websocket.StatusInternalError, "segment delivery failed")
			return
		}
	}
}

// deliver records one segment and reports the outcome to the client. Record
// failures are reported without ending the stream; only a failed write or a
// dead connection is returned to the session.
func (h *Handler) deliver(ctx context.Context, conn *websocket.Conn, log *slog.Logger, pcm []byte) error {
	if h.segments == nil {
		ev := Event{Type: EventSegment, Bytes: len(pcm)}
		if h.rate > 0 {
			ev.DurationMs = int64(len(pcm)/2) * 1000 / int64(h.rate)
		}
		return send(ctx, conn, ev)
	}
	rec, err := h.segments.Handle(ctx, pcm)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn("segment not recorded", "bytes", len(pcm), "error", err)
		return send(ctx, conn, Event{Type: EventError, Message: err.Error()})
	}
	return send(ctx, conn, Event{
		Type:       EventSegment,
		ID:         rec.ID,
		DurationMs: rec.Duration.Milliseconds(),
		Bytes:      len(pcm),
		AudioPath:  rec.AudioURL,
		Text:       rec.Transcription,
	})
}

func send(ctx context.Context, conn *websocket.Conn, ev Event) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, ev)
}
