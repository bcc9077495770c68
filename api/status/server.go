package status

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/kilianp07/vehicle2mqtt/core/bridgestatus"
)

// Handlers returns the status endpoints keyed by path.
func Handlers(store bridgestatus.Store, token string) map[string]http.Handler {
	return map[string]http.Handler{
		"/api/status": NewStatusHandler(store, token),
		"/healthz":    NewHealthHandler(store),
	}
}

// Serve serves the status endpoints on ln until ctx is canceled.
func Serve(ctx context.Context, ln net.Listener, store bridgestatus.Store, token string) error {
	mux := http.NewServeMux()
	for path, h := range Handlers(store, token) {
		mux.Handle(path, h)
	}
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
