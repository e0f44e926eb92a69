package main

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"veritas/internal/api"
)

// handleHTTPServer configures and starts a HTTP server on the given
// URL. It shuts down the server if any error is received in the error channel.
func handleHTTPServer(ctx context.Context, u *url.URL, server *api.Server, wg *sync.WaitGroup, errc chan error, logger *zap.Logger) {
	for _, m := range server.Mounts {
		logger.Info("HTTP mounted",
			zap.String("method", m.Method),
			zap.String("verb", m.Verb),
			zap.String("pattern", m.Pattern),
		)
	}

	// Start HTTP server using default configuration, change the code to
	// configure the server as required by your service.
	srv := &http.Server{Addr: u.Host, Handler: server, ReadHeaderTimeout: time.Second * 60}

	(*wg).Add(1)
	go func() {
		defer (*wg).Done()

		// Start HTTP server in a separate goroutine.
		go func() {
			logger.Info("HTTP server listening", zap.String("addr", u.Host))
			notify(errc, srv.ListenAndServe())
		}()

		<-ctx.Done()
		logger.Info("shutting down HTTP server", zap.String("addr", u.Host))

		// Shutdown gracefully with a 30s timeout.
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("failed to shutdown", zap.Error(err))
		}
	}()
}
