package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"transport-connect/internal/general/logger"
)

// NewServer builds the HTTP server with the timeouts every service uses.
// Upgraded sockets are not bound by them: the upgrader clears deadlines.
func NewServer(ctx context.Context, port int, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
}

// Serve runs srv until ctx is cancelled, then shuts it down gracefully.
func Serve(ctx context.Context, log *logger.Logger, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		log.Info(ctx, "graceful_shutdown", "Shutting down HTTP server", nil)
		if err := srv.Shutdown(shCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "http_shutdown_failed", "Failed to gracefully shut down HTTP server", err, nil)
		}
		return nil
	case err := <-errCh:
		if err != nil {
			log.Error(ctx, "http_server_error", "HTTP server terminated with error", err, map[string]any{"addr": srv.Addr})
		}
		return err
	}
}

// WithConcurrencyLimit caps how many requests run at once. Waiting requests
// give up when the client goes away.
func WithConcurrencyLimit(n int, next http.Handler) http.Handler {
	if n <= 0 {
		return next
	}
	sem := make(chan struct{}, n)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case sem <- struct{}{}:
			defer func() { <-sem }()
			next.ServeHTTP(w, r)
		case <-r.Context().Done():
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		}
	})
}
