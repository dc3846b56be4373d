package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/systmms/openclaw-secure/internal/logging"
)

// Server serves /metrics while the gateway runs.
type Server struct {
	addr   string
	logger *logging.Logger

	server   *http.Server
	listener net.Listener
}

// NewServer returns a server for addr (host:port). Nothing listens until
// Start.
func NewServer(addr string, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Server{addr: addr, logger: logger}
}

// Start registers the collectors, binds the listener and serves in the
// background. Bind errors are returned; serve errors are logged.
func (s *Server) Start() error {
	Init()

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = ln

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Warn("metrics server stopped: %v", err)
		}
	}()
	s.logger.Debug("serving metrics on http://%s/metrics", ln.Addr())
	return nil
}

// Addr returns the bound address, empty before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
