package health

import (
	"errors"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthgrpc "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the gRPC health service name reported for speechsegd.
const ServiceName = "speechseg.Segmenter"

// GRPC serves grpc.health.v1 for orchestrators that probe over gRPC. Both
// the overall ("") and the named service start NOT_SERVING.
type GRPC struct {
	server *grpc.Server
	health *grpchealth.Server
	log    *slog.Logger
}

// NewGRPC builds the gRPC server with only the health service registered.
func NewGRPC(log *slog.Logger) *GRPC {
	srv := grpc.NewServer()
	hs := grpchealth.NewServer()
	healthgrpc.RegisterHealthServer(srv, hs)
	g := &GRPC{server: srv, health: hs, log: log}
	g.SetServing(false)
	return g
}

// SetServing flips both statuses between SERVING and NOT_SERVING.
func (g *GRPC) SetServing(ok bool) {
	status := healthgrpc.HealthCheckResponse_NOT_SERVING
	if ok {
		status = healthgrpc.HealthCheckResponse_SERVING
	}
	g.health.SetServingStatus("", status)
	g.health.SetServingStatus(ServiceName, status)
}

// Serve blocks until Stop. A stopped server is not an error.
func (g *GRPC) Serve(lis net.Listener) error {
	g.log.Info("gRPC health server listening", "addr", lis.Addr().String())
	if err := g.server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// Stop marks the service NOT_SERVING and drains, forcing a stop after timeout.
func (g *GRPC) Stop(timeout time.Duration) {
	g.SetServing(false)
	stopped := make(chan struct{})
	go func() {
		g.server.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(timeout):
		g.log.Warn("gRPC graceful stop timed out, forcing stop")
		g.server.Stop()
	}
}
