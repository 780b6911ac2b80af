package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/OfomiMatthew/tech-buddy/internal/config"
)

// NewGRPCServer builds a gRPC server with logging, health and reflection, and registers all provided services.
func NewGRPCServer(log *slog.Logger, registrars ...Registrar) *grpc.Server {
	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(unaryLogger(log)))

	for _, r := range registrars {
		r.Register(grpcServer)
	}

	healthSrv := health.NewServer()
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthSrv)

	// enable reflection for easier debugging with grpcurl
	reflection.Register(grpcServer)
	return grpcServer
}

// StartGRPCServer listens on the configured address and serves until Stop is called.
func StartGRPCServer(cfg *config.Config, grpcServer *grpc.Server) error {
	addr := fmt.Sprintf("%s:%s", cfg.GRPC.Host, cfg.GRPC.Port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return grpcServer.Serve(lis)
}

func unaryLogger(log *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		if err != nil {
			log.Warn("grpc call failed", "method", info.FullMethod, "err", err, "duration", time.Since(start))
		} else {
			log.Debug("grpc call", "method", info.FullMethod, "duration", time.Since(start))
		}
		return resp, err
	}
}
