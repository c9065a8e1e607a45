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

// ServiceName is the health service name reported alongside the overall status.
const ServiceName = "relay.Polly"

// Server exposes grpc.health.v1 so orchestrators can probe relay readiness.
// It starts NOT_SERVING.
type Server struct {
	grpc   *grpc.Server
	health *grpchealth.Server
	log    *slog.Logger
}

// New returns a health server in the NOT_SERVING state.
func New(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		grpc:   grpc.NewServer(),
		health: grpchealth.NewServer(),
		log:    logger.With("component", "health"),
	}
	healthgrpc.RegisterHealthServer(s.grpc, s.health)
	s.SetServing(false)
	return s
}

// SetServing flips both the overall and the relay service status.
func (s *Server) SetServing(serving bool) {
	status := healthgrpc.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthgrpc.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// Serve blocks serving health checks on lis. It returns nil after Stop.
func (s *Server) Serve(lis net.Listener) error {
	if err := s.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// Stop marks the server NOT_SERVING and stops it, forcing the stop when a
// graceful stop does not finish within timeout.
func (s *Server) Stop(timeout time.Duration) {
	s.SetServing(false)

	stopped := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(timeout):
		s.log.Warn("graceful stop timed out, forcing stop")
		s.grpc.Stop()
	}
}
