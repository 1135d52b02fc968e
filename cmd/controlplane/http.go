package main

import (
	"context"
	"net/http"
	"time"
)

// runHTTPServer runs handler until ctx is cancelled, then drains
// in-flight requests for up to 10s before returning. Grounded on
// den-vasyliev-agentregistry-inventory/internal/httpapi/server.go's
// serve-in-goroutine + select-on-ctx-or-error shutdown idiom.
func runHTTPServer(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
