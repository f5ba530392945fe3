// Command speechsegd accepts PCM audio over WebSocket, isolates speech
// segments, and records and transcribes each one.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	speechseg "github.com/cortexswarm/speechseg-go"
	"github.com/cortexswarm/speechseg-go/internal/config"
	"github.com/cortexswarm/speechseg-go/internal/health"
	"github.com/cortexswarm/speechseg-go/internal/observe"
	"github.com/cortexswarm/speechseg-go/internal/recorder"
	"github.com/cortexswarm/speechseg-go/internal/server"
	"github.com/cortexswarm/speechseg-go/internal/store"
	"github.com/cortexswarm/speechseg-go/internal/stt"
)

// version is set at build time via -ldflags.
var version = "dev"

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file (optional)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("speechsegd exited", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Loader{Path: configPath}.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Server.LogLevel.Level()}))
	slog.SetDefault(logger)
	logger.Info("starting speechsegd",
		"version", version,
		"listen_addr", cfg.Server.ListenAddr,
		"vad_engine", cfg.VAD.Engine,
		"stt_engine", cfg.STT.Engine,
	)

	shutdownOTel, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    cfg.Observe.ServiceName,
		ServiceVersion: version,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			logger.Warn("telemetry shutdown", "error", err)
		}
	}()
	met, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		return fmt.Errorf("create metrics: %w", err)
	}

	// The gRPC health port comes up first so orchestrators see NOT_SERVING
	// while the model loads.
	var grpcHealth *health.GRPC
	var grpcLis net.Listener
	if addr := cfg.Server.GRPCHealthAddr; addr != "" {
		if grpcLis, err = net.Listen("tcp", addr); err != nil {
			return fmt.Errorf("listen grpc health: %w", err)
		}
		grpcHealth = health.NewGRPC(logger.With("component", "grpc-health"))
	}

	factory, err := speechseg.NewFactory(cfg.VAD.Segmentation(), modelLoader(cfg.VAD),
		speechseg.WithLogger(logger.With("component", "segmenter")),
		speechseg.WithMeterProvider(otel.GetMeterProvider()),
	)
	if err != nil {
		return fmt.Errorf("load classifier: %w", err)
	}
	defer factory.Close()

	transcriber, err := stt.New(cfg.STT.Engine, stt.Options{
		ServerURL: cfg.STT.ServerURL,
		ModelPath: cfg.STT.ModelPath,
		Language:  cfg.STT.Language,
		Timeout:   cfg.STT.Timeout,
		Logger:    logger.With("component", "stt"),
	})
	if err != nil {
		return fmt.Errorf("create transcriber: %w", err)
	}
	if c, ok := transcriber.(io.Closer); ok {
		defer c.Close()
	}

	checkers := []health.Checker{{
		Name: "classifier",
		Check: func(context.Context) error {
			if !factory.Ready() {
				return errors.New("classifier not loaded")
			}
			return nil
		},
	}}

	srvOpts := server.Options{
		Factory:    factory,
		SampleRate: cfg.VAD.SampleRate,
		Metrics:    met,
		Logger:     logger,
		ReadLimit:  cfg.Server.ReadLimit,
	}
	if cfg.Recorder.Dir != "" {
		recOpts := recorder.Options{
			Dir:         cfg.Recorder.Dir,
			SampleRate:  cfg.VAD.SampleRate,
			Transcriber: transcriber,
			Metrics:     met,
			Logger:      logger,
		}
		if dsn := cfg.Store.PostgresDSN; dsn != "" {
			st, err := store.Open(ctx, dsn)
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.Migrate(ctx); err != nil {
				return err
			}
			recOpts.Store = st
			checkers = append(checkers, health.Checker{Name: "store", Check: st.Ping})
			logger.Info("record store ready")
		}
		rec, err := recorder.New(recOpts)
		if err != nil {
			return err
		}
		srvOpts.Segments = rec
	}

	mw := observe.Middleware(met, logger)
	mux := http.NewServeMux()
	mux.Handle("GET /vad", server.New(srvOpts))
	health.New(checkers...).Register(mux, mw)
	mux.Handle("GET /metrics", promhttp.Handler())

	httpSrv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", "addr", cfg.Server.ListenAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if grpcHealth != nil {
		grpcHealth.SetServing(true)
		g.Go(func() error { return grpcHealth.Serve(grpcLis) })
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		if grpcHealth != nil {
			grpcHealth.Stop(shutdownTimeout)
		}
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(sctx)
	})
	return g.Wait()
}

func modelLoader(v config.VADConfig) speechseg.ModelLoader {
	if v.Engine == config.VADEnergy {
		return speechseg.LoadEnergy()
	}
	return speechseg.LoadSilero(speechseg.SileroOptions{
		ModelPath:   v.ModelPath,
		LibraryPath: v.OnnxRuntimeLib,
	})
}
