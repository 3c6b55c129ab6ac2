// Package health reports whether the service can reach its database, over HTTP and the
// standard grpc.health.v1 service.
package health

import (
	"context"
	"fmt"
	"net"
	"time"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"securedocs/internal/logging"
)

// ServiceName is the name registered with the gRPC health service alongside "".
const ServiceName = "securedocs"

type Pinger interface {
	PingContext(ctx context.Context) error
}

type Checker struct {
	db      Pinger
	timeout time.Duration
}

func NewChecker(db Pinger, timeout time.Duration) *Checker {
	return &Checker{db: db, timeout: timeout}
}

func (c *Checker) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	return nil
}

// Server serves grpc.health.v1 and refreshes its status from the checker every interval.
type Server struct {
	address  string
	checker  *Checker
	interval time.Duration
	health   *grpchealth.Server
	log      logging.Logger
}

func NewServer(address string, checker *Checker, interval time.Duration, log logging.Logger) *Server {
	return &Server{
		address:  address,
		checker:  checker,
		interval: interval,
		health:   grpchealth.NewServer(),
		log:      log.With("module", "grpc_health"),
	}
}

// Run listens on the configured address and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.address, err)
	}
	return s.Serve(ctx, lis)
}

func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, s.health)

	s.refresh(ctx)
	go s.watch(ctx)

	go func() {
		<-ctx.Done()
		s.log.Info(ctx, "Stopping gRPC health server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.log.Info(ctx, "Starting gRPC health server", "address", lis.Addr().String())
	if err := srv.Serve(lis); err != nil {
		return err
	}
	return nil
}

func (s *Server) watch(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.refresh(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) refresh(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	if err := s.checker.Check(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		s.log.Warn(ctx, "health check failed", "error", err)
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}
