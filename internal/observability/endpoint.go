// Package observability serves Prometheus metrics over HTTP.
package observability

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tphakala/invsync/internal/logger"
)

// ShutdownTimeout bounds graceful shutdown of the metrics server.
const ShutdownTimeout = 5 * time.Second

// Endpoint handles the Prometheus-compatible metrics endpoint.
type Endpoint struct {
	server        *http.Server
	listenAddress string
	gatherer      prometheus.Gatherer
	log           logger.Logger
}

// NewEndpoint creates a metrics endpoint listening on listenAddress.
func NewEndpoint(listenAddress string, gatherer prometheus.Gatherer, log logger.Logger) *Endpoint {
	if log == nil {
		log = logger.Global().Module("observability")
	}
	return &Endpoint{
		listenAddress: listenAddress,
		gatherer:      gatherer,
		log:           log,
	}
}

// Handler returns the HTTP handler serving /metrics.
func (e *Endpoint) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(e.gatherer, promhttp.HandlerOpts{}))
	return mux
}

// Start binds the listener and serves until ctx is cancelled.
// The returned channel is closed once the server has stopped.
func (e *Endpoint) Start(ctx context.Context) (<-chan struct{}, error) {
	ln, err := net.Listen("tcp", e.listenAddress)
	if err != nil {
		return nil, err
	}
	e.server = &http.Server{
		Handler:           e.Handler(),
		ReadHeaderTimeout: ShutdownTimeout,
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		e.log.Info("metrics endpoint starting", logger.String("address", ln.Addr().String()))
		if err := e.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.log.Error("metrics server error", logger.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := e.server.Shutdown(shutdownCtx); err != nil {
			e.log.Error("metrics server shutdown error", logger.Error(err))
		}
	}()
	return done, nil
}
