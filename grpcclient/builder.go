package grpcclient

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

// Builder provides a fluent interface for constructing a connection to a
// monitor's gRPC health server.
type Builder struct {
	address string

	// TLS configuration
	tlsEnabled    bool
	tlsCAFile     string
	tlsCertFile   string
	tlsKeyFile    string
	tlsServerName string
	plaintext     bool

	// Additional dial options
	dialOpts []grpc.DialOption
}

// NewBuilder creates a new gRPC client builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// WithAddress sets the server address (e.g., "127.0.0.1:8081").
func (b *Builder) WithAddress(address string) *Builder {
	b.address = address
	return b
}

// WithTLS configures TLS for the connection.
//
// Parameters:
//   - caFile: Path to CA certificate for server verification (optional, uses system roots if empty)
//   - certFile: Path to client certificate for mTLS (optional, must be paired with keyFile)
//   - keyFile: Path to client private key for mTLS (optional, must be paired with certFile)
//   - serverName: Expected server name for TLS verification (optional, overrides SNI)
func (b *Builder) WithTLS(caFile, certFile, keyFile, serverName string) *Builder {
	b.tlsEnabled = true
	b.tlsCAFile = caFile
	b.tlsCertFile = certFile
	b.tlsKeyFile = keyFile
	b.tlsServerName = serverName
	return b
}

// WithPlaintext disables transport security. Use it only for a health
// server bound to loopback.
func (b *Builder) WithPlaintext() *Builder {
	b.plaintext = true
	return b
}

// WithDialOptions adds custom gRPC dial options.
// These options are applied after the transport credentials.
func (b *Builder) WithDialOptions(opts ...grpc.DialOption) *Builder {
	b.dialOpts = append(b.dialOpts, opts...)
	return b
}

// Build creates the client connection. The connection is established lazily
// on the first call.
func (b *Builder) Build() (*grpc.ClientConn, error) {
	if b.address == "" {
		return nil, errors.New("grpcclient: server address is required")
	}
	if b.plaintext && b.tlsEnabled {
		return nil, errors.New("grpcclient: plaintext and TLS are mutually exclusive")
	}

	var opts []grpc.DialOption

	switch {
	case b.plaintext:
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	case b.tlsEnabled:
		tlsConfig, err := b.buildTLSConfig()
		if err != nil {
			return nil, fmt.Errorf("grpcclient: TLS config failed: %w", err)
		}
		opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(tlsConfig)))
	default:
		// Default to TLS with system roots to avoid accidental plaintext connections.
		opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{
			MinVersion: tls.VersionTLS12,
		})))
	}

	opts = append(opts, b.dialOpts...)

	conn, err := grpc.NewClient(b.address, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpcclient: dial failed: %w", err)
	}

	return conn, nil
}

// buildTLSConfig constructs the TLS configuration for the gRPC connection.
func (b *Builder) buildTLSConfig() (*tls.Config, error) {
	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
		ServerName: b.tlsServerName,
	}

	if b.tlsCAFile != "" {
		caCert, err := os.ReadFile(b.tlsCAFile)
		if err != nil {
			return nil, fmt.Errorf("read CA file: %w", err)
		}

		certPool := x509.NewCertPool()
		if !certPool.AppendCertsFromPEM(caCert) {
			return nil, errors.New("failed to parse CA certificate")
		}
		tlsConfig.RootCAs = certPool
	}

	switch {
	case b.tlsCertFile != "" && b.tlsKeyFile != "":
		cert, err := tls.LoadX509KeyPair(b.tlsCertFile, b.tlsKeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	case b.tlsCertFile != "" || b.tlsKeyFile != "":
		return nil, errors.New("both TLS cert and key files must be provided for mTLS")
	}

	return tlsConfig, nil
}
