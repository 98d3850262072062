package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-i2p/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/oops"
)

var log = logger.GetGoI2PLogger()

// Server serves the collectors of a PrometheusMetrics on /metrics.
type Server struct {
	srv      *http.Server
	listener net.Listener
	done     chan struct{}
}

// Listen binds addr and starts serving in the background.
func Listen(addr string, m *PrometheusMetrics) (*Server, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, oops.Wrapf(err, "metrics listen on %s", addr)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{}))

	s := &Server{
		srv: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		listener: l,
		done:     make(chan struct{}),
	}
	go s.serve()

	log.WithFields(logger.Fields{
		"at":   "metrics.Listen",
		"addr": l.Addr().String(),
	}).Info("metrics endpoint started")
	return s, nil
}

func (s *Server) serve() {
	defer close(s.done)
	if err := s.srv.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Error("metrics server stopped")
	}
}

// Addr returns the bound address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Close shuts the server down, waiting at most timeout for in-flight scrapes.
func (s *Server) Close(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	err := s.srv.Shutdown(ctx)
	<-s.done
	return err
}
