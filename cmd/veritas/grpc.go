package main

import (
	"context"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"veritas/internal/services"
)

const readinessInterval = 10 * time.Second

// handleGRPCServer serves the standard gRPC health protocol. The serving
// status follows the readiness probe.
func handleGRPCServer(ctx context.Context, addr string, healthSvc *services.HealthService, wg *sync.WaitGroup, errc chan error, logger *zap.Logger) {
	srv := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)

	update := func() {
		status := healthpb.HealthCheckResponse_SERVING
		if err := healthSvc.Readyz(ctx); err != nil {
			logger.Warn("not ready", zap.Error(err))
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
		hs.SetServingStatus("", status)
	}

	(*wg).Add(1)
	go func() {
		defer (*wg).Done()

		lis, err := net.Listen("tcp", addr)
		if err != nil {
			notify(errc, err)
			return
		}

		go func() {
			logger.Info("gRPC health server listening", zap.String("addr", addr))
			notify(errc, srv.Serve(lis))
		}()

		update()
		ticker := time.NewTicker(readinessInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				update()
			case <-ctx.Done():
				logger.Info("shutting down gRPC server", zap.String("addr", addr))
				hs.Shutdown()
				srv.GracefulStop()
				return
			}
		}
	}()
}
