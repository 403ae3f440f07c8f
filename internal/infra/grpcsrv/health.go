// Package grpcsrv serves the standard gRPC health protocol for load
// balancers and orchestrators that probe over gRPC.
package grpcsrv

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"campusmarket/internal/infra/obs"
)

const ServiceName = "campusmarket.Coordinator"

type HealthServer struct {
	server   *grpc.Server
	health   *health.Server
	ready    obs.Check
	interval time.Duration
	logger   *slog.Logger
}

// NewHealthServer reports SERVING while ready succeeds. A nil check always
// serves.
func NewHealthServer(ready obs.Check, interval time.Duration, logger *slog.Logger) *HealthServer {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	hs := health.NewServer()
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	return &HealthServer{server: srv, health: hs, ready: ready, interval: interval, logger: logger}
}

// Probe runs the readiness check once and publishes the result.
func (s *HealthServer) Probe(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if s.ready != nil {
		probeCtx, cancel := context.WithTimeout(ctx, s.interval)
		err := s.ready(probeCtx)
		cancel()
		if err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			if s.logger != nil {
				s.logger.Warn("readiness probe failed", "error", err)
			}
		}
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
	return status
}

// Serve listens on addr until ctx ends.
func (s *HealthServer) Serve(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.serve(ctx, lis)
}

func (s *HealthServer) serve(ctx context.Context, lis net.Listener) error {
	s.Probe(ctx)
	go s.poll(ctx)
	go func() {
		<-ctx.Done()
		s.health.Shutdown()
		s.server.GracefulStop()
	}()
	if s.logger != nil {
		s.logger.Info("grpc health server starting", "addr", lis.Addr().String())
	}
	if err := s.server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

func (s *HealthServer) poll(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Probe(ctx)
		}
	}
}
