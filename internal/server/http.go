package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dgellow/github-oauth-broker/internal/log"
)

const (
	readHeaderTimeout = 10 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 60 * time.Second
	idleTimeout       = 120 * time.Second
)

// HTTPServer manages the HTTP server lifecycle
type HTTPServer struct {
	name   string
	server *http.Server
}

// NewHTTPServer creates a new HTTP server with the given handler and address
func NewHTTPServer(name string, handler http.Handler, addr string) *HTTPServer {
	return &HTTPServer{
		name: name,
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: readHeaderTimeout,
			ReadTimeout:       readTimeout,
			WriteTimeout:      writeTimeout,
			IdleTimeout:       idleTimeout,
		},
	}
}

// Addr returns the configured listen address
func (h *HTTPServer) Addr() string {
	return h.server.Addr
}

// Start listens on the configured address and serves until Stop
func (h *HTTPServer) Start() error {
	ln, err := net.Listen("tcp", h.server.Addr)
	if err != nil {
		return err
	}
	return h.Serve(ln)
}

// Serve serves on an existing listener until Stop
func (h *HTTPServer) Serve(ln net.Listener) error {
	log.LogInfoWithFields("http", "HTTP server starting", map[string]any{
		"server": h.name,
		"addr":   ln.Addr().String(),
	})

	if err := h.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	log.LogInfoWithFields("http", "HTTP server stopping", map[string]any{
		"server": h.name,
		"addr":   h.server.Addr,
	})

	if err := h.server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	log.LogInfoWithFields("http", "HTTP server stopped", map[string]any{
		"server": h.name,
		"addr":   h.server.Addr,
	})
	return nil
}
