package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"veritas/internal/api"
	"veritas/internal/config"
	"veritas/internal/database"
	"veritas/internal/logging"
	"veritas/internal/metrics"
	"veritas/internal/pipeline"
	"veritas/internal/pipeline/detectors"
	"veritas/internal/services"
	"veritas/internal/storage"
	"veritas/internal/tracing"
	"veritas/internal/video"
	"veritas/internal/ws"
)

func main() {
	// Flags override the environment configuration.
	var (
		hostF     = flag.String("host", "", "Server host (overrides VERITAS_HTTP_HOST)")
		httpPortF = flag.String("http-port", "", "HTTP port (overrides VERITAS_HTTP_PORT)")
		grpcPortF = flag.String("grpc-port", "", "gRPC health port, 0 disables (overrides VERITAS_GRPC_PORT)")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if *hostF != "" {
		cfg.HTTPHost = *hostF
	}
	if *httpPortF != "" {
		if cfg.HTTPPort, err = strconv.Atoi(*httpPortF); err != nil {
			fmt.Fprintf(os.Stderr, "invalid http port %q: %v\n", *httpPortF, err)
			os.Exit(1)
		}
	}
	if *grpcPortF != "" {
		if cfg.GRPCPort, err = strconv.Atoi(*grpcPortF); err != nil {
			fmt.Fprintf(os.Stderr, "invalid grpc port %q: %v\n", *grpcPortF, err)
			os.Exit(1)
		}
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())

	if cfg.OTLPEndpoint != "" {
		tp, err := tracing.InitTracer(ctx, cfg.OTLPEndpoint, "veritas")
		if err != nil {
			logger.Fatal("failed to init tracer", zap.Error(err))
		}
		defer tp.Shutdown(context.Background())
		logger.Info("tracing enabled", zap.String("endpoint", cfg.OTLPEndpoint))
	}

	// Initialize result storage
	db, err := database.New(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		logger.Fatal("failed to migrate database", zap.Error(err))
	}

	previews, writeDirs, err := newPreviewStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize preview store", zap.Error(err))
	}

	registry := detectors.NewDefaultRegistry()
	detectorSet, err := registry.DefaultDetectorSet()
	if err != nil {
		logger.Fatal("failed to resolve detectors", zap.Error(err))
	}

	opener := video.NewFFmpegOpener(cfg.FFmpegPath, cfg.FFprobePath, logger)
	analysisPipeline, err := pipeline.NewAnalysisPipeline(opener, previews, detectorSet, cfg.PipelineConfig(), logger)
	if err != nil {
		logger.Fatal("failed to create analysis pipeline", zap.Error(err))
	}

	// Completed analyses fan out to live-feed clients; the hub subscribes per
	// connected owner.
	bus := pipeline.NewEventBus()
	defer bus.Close()
	hub := ws.NewResultHub(bus, logger)
	defer hub.Close()

	// Initialize the services.
	var (
		analysisSvc *services.AnalysisService
		healthSvc   *services.HealthService
		systemSvc   *services.SystemService
	)
	{
		analysisSvc, err = services.NewAnalysisService(analysisPipeline, db, previews, bus, services.AnalysisConfig{
			UploadDir:         cfg.UploadDir,
			AllowedExtensions: cfg.AllowedExtensions,
			MaxUploadBytes:    cfg.MaxUploadBytes,
		}, logger)
		if err != nil {
			logger.Fatal("failed to create analysis service", zap.Error(err))
		}
		healthSvc = services.NewHealthService(db, append(writeDirs, cfg.UploadDir)...)
		systemSvc = services.NewSystemService(db, registry, analysisPipeline, analysisSvc, hub)
	}

	server := api.New(api.Deps{
		Analysis:  analysisSvc,
		Health:    healthSvc,
		System:    systemSvc,
		Detectors: registry,
		Weights:   analysisPipeline,
		Events:    bus,
		WebSocket: ws.NewHandler(hub, logger),
		Metrics:   metrics.Handler(),
	}, logger)

	// Create channel used by both the signal handler and server goroutines
	// to notify the main goroutine when to stop the server. Only the first
	// error is read, so senders never block on it.
	errc := make(chan error, 3)

	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		notify(errc, fmt.Errorf("%s", <-c))
	}()

	var wg sync.WaitGroup

	u := &url.URL{Scheme: "http", Host: net.JoinHostPort(cfg.HTTPHost, strconv.Itoa(cfg.HTTPPort))}
	handleHTTPServer(ctx, u, server, &wg, errc, logger)

	if cfg.GRPCPort > 0 {
		addr := net.JoinHostPort(cfg.HTTPHost, strconv.Itoa(cfg.GRPCPort))
		handleGRPCServer(ctx, addr, healthSvc, &wg, errc, logger)
	}

	// Wait for signal.
	logger.Info("exiting", zap.Error(<-errc))

	// Send cancellation signal to the goroutines.
	cancel()

	wg.Wait()
	logger.Info("exited")
}

// newPreviewStore builds the configured preview backend. It returns the
// local directories that must stay writable for readiness.
func newPreviewStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (pipeline.PreviewStore, []string, error) {
	switch cfg.PreviewBackend {
	case config.PreviewBackendMinIO:
		store, err := storage.NewMinIOPreviewStore(storage.MinIOConfig{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			UseSSL:    cfg.MinIOUseSSL,
			Bucket:    cfg.MinIOBucket,
		})
		if err != nil {
			return nil, nil, err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, nil, err
		}
		logger.Info("previews stored in minio",
			zap.String("endpoint", cfg.MinIOEndpoint),
			zap.String("bucket", cfg.MinIOBucket),
		)
		return store, nil, nil
	default:
		store, err := storage.NewLocalPreviewStore(cfg.FramesDir)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("previews stored on disk", zap.String("dir", store.Dir()))
		return store, []string{store.Dir()}, nil
	}
}

// notify reports err to errc without blocking. Errors from a server that
// was stopped on purpose are dropped.
func notify(errc chan<- error, err error) {
	if err == nil || errors.Is(err, http.ErrServerClosed) || errors.Is(err, grpc.ErrServerStopped) {
		return
	}
	select {
	case errc <- err:
	default:
	}
}
