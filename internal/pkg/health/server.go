package health

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Vodeneev/bttsbot/internal/pkg/health/handlers"
)

// NewMux wires /ping, /health, /state and /metrics.
func NewMux(status func() any, registry *prometheus.Registry) *http.ServeMux {
	mux := http.NewServeMux()

	// Health endpoints
	mux.HandleFunc("/ping", handlers.HandlePing)
	mux.HandleFunc("/health", handlers.HandleHealth)

	// Current loop state (idle / awaiting pick)
	mux.HandleFunc("/state", handlers.StateHandler(status))

	// Metrics endpoint
	mux.Handle("/metrics", handlers.MetricsHandler(registry))

	return mux
}

// Run serves the mux on addr until ctx is cancelled.
func Run(ctx context.Context, addr string, service string, mux http.Handler, readHeaderTimeout time.Duration) {
	if readHeaderTimeout <= 0 {
		readHeaderTimeout = 5 * time.Second
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	go func() {
		slog.Info("Health server listening", "service", service, "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Health server error", "service", service, "error", err)
		}
	}()
}
