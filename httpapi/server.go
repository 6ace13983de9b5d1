// Package httpapi exposes the service's HTTP surface: session signaling,
// text injection endpoints, and the administrative session list and history
// views.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/NimbusAI/avatarchat/engine"
	"github.com/NimbusAI/avatarchat/logger"
)

// Server timeouts. Signaling exchanges are short; long-lived media flows do
// not pass through this server.
const (
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 30 * time.Second
	defaultIdleTimeout     = 120 * time.Second
	defaultShutdownTimeout = 10 * time.Second
)

// Server hosts the HTTP API in front of one engine.
type Server struct {
	engine *engine.Engine
	mux    *http.ServeMux
	server *http.Server

	addr     string
	certFile string
	keyFile  string
}

// Option configures a Server.
type Option func(*Server)

// WithAddress sets the listen address (host:port).
func WithAddress(addr string) Option {
	return func(s *Server) { s.addr = addr }
}

// WithTLS serves HTTPS with the given certificate pair.
func WithTLS(certFile, keyFile string) Option {
	return func(s *Server) {
		s.certFile = certFile
		s.keyFile = keyFile
	}
}

// WithRoute registers an extra handler on the server's mux. Used to mount
// the transport signaling endpoint next to the administrative surface.
func WithRoute(pattern string, h http.Handler) Option {
	return func(s *Server) { s.mux.Handle(pattern, h) }
}

// NewServer creates a server for the given engine. Call Start to begin
// listening.
func NewServer(e *engine.Engine, opts ...Option) *Server {
	s := &Server{
		engine: e,
		mux:    http.NewServeMux(),
		addr:   ":8282",
	}

	s.mux.HandleFunc("/session/{id}/input", s.handleInput)
	s.mux.HandleFunc("/session/{id}/answer", s.handleAnswer)
	s.mux.HandleFunc("GET /session/{id}/history", s.handleHistory)
	s.mux.HandleFunc("GET /manage/sessions", s.handleSessions)

	for _, opt := range opts {
		opt(s)
	}

	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      otelhttp.NewHandler(s.mux, "httpapi"),
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
		IdleTimeout:  defaultIdleTimeout,
	}
	return s
}

// Handler returns the server's root handler, primarily for tests.
func (s *Server) Handler() http.Handler { return s.server.Handler }

// Start listens and serves until Shutdown. It blocks.
func (s *Server) Start() error {
	logger.Info("http server starting", "addr", s.addr, "tls", s.certFile != "")
	var err error
	if s.certFile != "" {
		err = s.server.ListenAndServeTLS(s.certFile, s.keyFile)
	} else {
		err = s.server.ListenAndServe()
	}
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultShutdownTimeout)
		defer cancel()
	}
	return s.server.Shutdown(ctx)
}

// writeJSON marshals v with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("encode response failed", "error", err)
	}
}

// writeError emits the uniform JSON error body.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
