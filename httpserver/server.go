package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// Defaults for the metrics server.
const (
	DefaultReadHeaderTimeout = 5 * time.Second
	DefaultShutdownTimeout   = 5 * time.Second
)

// Builder provides a fluent interface for constructing the HTTP server that
// exposes the monitor's metrics.
type Builder struct {
	address           string
	mux               *http.ServeMux
	tls               *TLSConfig
	readHeaderTimeout time.Duration
	shutdownTimeout   time.Duration
	logger            logrus.FieldLogger
}

// NewBuilder creates a new server builder.
func NewBuilder() *Builder {
	return &Builder{
		mux:               http.NewServeMux(),
		readHeaderTimeout: DefaultReadHeaderTimeout,
		shutdownTimeout:   DefaultShutdownTimeout,
		logger:            logrus.StandardLogger(),
	}
}

// WithAddress sets the listen address (e.g. "127.0.0.1:9090").
func (b *Builder) WithAddress(address string) *Builder {
	b.address = address
	return b
}

// WithHandler routes pattern to handler.
func (b *Builder) WithHandler(pattern string, handler http.Handler) *Builder {
	b.mux.Handle(pattern, handler)
	return b
}

// WithTLS serves over TLS. Without it the server is plaintext.
func (b *Builder) WithTLS(cfg *TLSConfig) *Builder {
	b.tls = cfg
	return b
}

// WithShutdownTimeout bounds graceful shutdown. Zero or negative values keep the default.
func (b *Builder) WithShutdownTimeout(timeout time.Duration) *Builder {
	if timeout > 0 {
		b.shutdownTimeout = timeout
	}
	return b
}

// WithLogger sets the logger.
func (b *Builder) WithLogger(logger logrus.FieldLogger) *Builder {
	if logger != nil {
		b.logger = logger
	}
	return b
}

// Build constructs the server. Nothing listens until Serve or ListenAndServe.
func (b *Builder) Build() (*Server, error) {
	server := &http.Server{
		Addr:              b.address,
		Handler:           b.mux,
		ReadHeaderTimeout: b.readHeaderTimeout,
	}

	if b.tls != nil {
		tlsConfig, err := NewTLSConfig(b.tls)
		if err != nil {
			return nil, err
		}
		server.TLSConfig = tlsConfig
	}

	return &Server{
		server:          server,
		shutdownTimeout: b.shutdownTimeout,
		logger:          b.logger,
	}, nil
}

// Server is an HTTP server bound to a context lifetime.
type Server struct {
	server          *http.Server
	shutdownTimeout time.Duration
	logger          logrus.FieldLogger
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// ListenAndServe listens on the configured address and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s.server.Addr == "" {
		return errors.New("httpserver: listen address is required")
	}

	var lc net.ListenConfig
	lis, err := lc.Listen(ctx, "tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("httpserver: listen on %s: %w", s.server.Addr, err)
	}

	return s.Serve(ctx, lis)
}

// Serve accepts connections on lis until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		if s.server.TLSConfig != nil {
			errCh <- s.server.ServeTLS(lis, "", "")
			return
		}
		errCh <- s.server.Serve(lis)
	}()

	s.logger.WithField("address", lis.Addr().String()).Info("httpserver: serving")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("httpserver: serve: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("httpserver: shutdown: %w", err)
		}
		<-errCh
		s.logger.Info("httpserver: stopped")
		return nil
	}
}
