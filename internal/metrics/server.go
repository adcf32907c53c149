// server.go - HTTP server exposing the prometheus registry.

package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Server is the http server that serves the /metrics request for prometheus.
type Server struct {
	server *http.Server
	log    zerolog.Logger
}

// NewServer creates a server listening on addr that only answers /metrics,
// gathering from g.
func NewServer(log zerolog.Logger, addr string, g prometheus.Gatherer) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	return &Server{
		server: &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		log:    log.With().Str("component", "metrics").Logger(),
	}
}

// Start serves in the background until Shutdown is called.
func (m *Server) Start() {
	m.log.Info().Str("address", m.server.Addr).Msg("metrics server started")
	go func() {
		if err := m.server.ListenAndServe(); err != nil {
			// http.ErrServerClosed is returned when Close or Shutdown is called
			if errors.Is(err, http.ErrServerClosed) {
				m.log.Debug().Err(err).Msg("metrics server shutdown")
			} else {
				m.log.Err(err).Msg("metrics server failed")
			}
		}
	}()
}

// Shutdown stops the server, waiting at most until ctx is done.
func (m *Server) Shutdown(ctx context.Context) error {
	return m.server.Shutdown(ctx)
}
