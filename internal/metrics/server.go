package metrics

import (
	"fmt"
	"log"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes a registry on /metrics.
type Server struct {
	ln  net.Listener
	srv *http.Server
}

// StartServer binds addr and begins serving the exposition endpoint in the
// background. Returns the running server; Close stops it.
func StartServer(addr string, m *Metrics) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics: listen %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux}

	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Printf("[metrics] serve error: %v", err)
		}
	}()
	log.Printf("[metrics] exposition listening on %s", ln.Addr())
	return &Server{ln: ln, srv: srv}, nil
}

// Close stops the exposition server.
func (s *Server) Close() error {
	if s == nil {
		return nil
	}
	return s.srv.Close()
}
