// Package health exposes the standard gRPC health service so orchestrators
// can probe the process on a port separate from the HTTP API.
package health

import (
	"context"
	"net"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"studygroup-service/internal/logging"
	"studygroup-service/internal/observability"
)

// Checker reports whether a dependency is usable.
type Checker func(ctx context.Context) error

type Server struct {
	grpc     *grpc.Server
	health   *grpchealth.Server
	service  string
	checks   map[string]Checker
	interval time.Duration
}

// NewServer builds a gRPC server carrying only the health service. service
// is the name probes ask for; the empty name reports overall status.
func NewServer(service string, checks map[string]Checker) *Server {
	gs := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(observability.GRPCServerMetricsUnaryInterceptor()),
	)
	hs := grpchealth.NewServer()
	healthpb.RegisterHealthServer(gs, hs)

	s := &Server{grpc: gs, health: hs, service: service, checks: checks, interval: 15 * time.Second}
	s.set(healthpb.HealthCheckResponse_SERVING)
	return s
}

func (s *Server) set(status healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(s.service, status)
}

// Probe runs every checker once and updates the serving status.
func (s *Server) Probe(ctx context.Context) bool {
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			logging.Log.Warn("health check failed", zap.String("check", name), zap.Error(err))
			s.set(healthpb.HealthCheckResponse_NOT_SERVING)
			return false
		}
	}
	s.set(healthpb.HealthCheckResponse_SERVING)
	return true
}

// Serve probes periodically and serves on lis until ctx is done.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
				s.Probe(probeCtx)
				cancel()
			}
		}
	}()
	return s.grpc.Serve(lis)
}

// Shutdown marks the service NOT_SERVING and drains in-flight RPCs.
func (s *Server) Shutdown() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
