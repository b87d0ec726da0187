package grpcserver

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
)

// Registrar installs a service on a gRPC server.
type Registrar interface {
	Register(s *grpc.Server)
}

// Builder provides a fluent interface for constructing the monitor's gRPC
// server, which carries the health service.
type Builder struct {
	address    string
	tls        *TLSConfig
	registrars []Registrar
	serverOpts []grpc.ServerOption
	logger     logrus.FieldLogger
}

// NewBuilder creates a new server builder.
func NewBuilder() *Builder {
	return &Builder{logger: logrus.StandardLogger()}
}

// WithAddress sets the listen address (e.g. "127.0.0.1:8081").
func (b *Builder) WithAddress(address string) *Builder {
	b.address = address
	return b
}

// WithTLS serves over TLS. Without it the server is plaintext.
func (b *Builder) WithTLS(cfg *TLSConfig) *Builder {
	b.tls = cfg
	return b
}

// WithService registers a service on the built server.
func (b *Builder) WithService(r Registrar) *Builder {
	b.registrars = append(b.registrars, r)
	return b
}

// WithServerOptions adds raw gRPC server options.
func (b *Builder) WithServerOptions(opts ...grpc.ServerOption) *Builder {
	b.serverOpts = append(b.serverOpts, opts...)
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
	opts := make([]grpc.ServerOption, 0, len(b.serverOpts)+1)

	if b.tls != nil {
		creds, err := NewServerCredentials(b.tls)
		if err != nil {
			return nil, err
		}
		opts = append(opts, grpc.Creds(creds))
	}
	opts = append(opts, b.serverOpts...)

	server := grpc.NewServer(opts...)
	for _, r := range b.registrars {
		r.Register(server)
	}

	return &Server{
		address: b.address,
		server:  server,
		logger:  b.logger,
	}, nil
}

// Server is a gRPC server bound to a context lifetime.
type Server struct {
	address string
	server  *grpc.Server
	logger  logrus.FieldLogger
}

// GRPCServer exposes the underlying server.
func (s *Server) GRPCServer() *grpc.Server {
	return s.server
}

// ListenAndServe listens on the configured address and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s.address == "" {
		return errors.New("grpcserver: listen address is required")
	}

	var lc net.ListenConfig
	lis, err := lc.Listen(ctx, "tcp", s.address)
	if err != nil {
		return fmt.Errorf("grpcserver: listen on %s: %w", s.address, err)
	}

	return s.Serve(ctx, lis)
}

// Serve accepts connections on lis until ctx is done, then stops gracefully.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.Serve(lis)
	}()

	s.logger.WithField("address", lis.Addr().String()).Info("grpcserver: serving")

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("grpcserver: serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		s.server.GracefulStop()
		<-errCh
		s.logger.Info("grpcserver: stopped")
		return nil
	}
}
