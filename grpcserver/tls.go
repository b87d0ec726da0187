package grpcserver

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"google.golang.org/grpc/credentials"
)

// TLSConfig holds TLS configuration for the health server.
type TLSConfig struct {
	// CertFile and KeyFile are the PEM server certificate and key.
	CertFile string
	KeyFile  string

	// CAFile, when set, is used to verify client certificates.
	CAFile string

	// ClientAuth is the client certificate policy, e.g. tls.RequireAndVerifyClientCert.
	ClientAuth tls.ClientAuthType

	// MinVersion defaults to TLS 1.2.
	MinVersion uint16
}

// NewServerCredentials creates gRPC transport credentials from cfg.
//
// The certificate is loaded once up front so a bad path fails at startup,
// then again on every handshake so rotated certificates are picked up
// without a restart.
func NewServerCredentials(cfg *TLSConfig) (credentials.TransportCredentials, error) {
	if cfg == nil {
		return nil, errors.New("grpcserver: TLS config is nil")
	}
	if cfg.CertFile == "" {
		return nil, errors.New("grpcserver: server certificate file is required")
	}
	if cfg.KeyFile == "" {
		return nil, errors.New("grpcserver: server key file is required")
	}

	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
		ClientAuth: cfg.ClientAuth,
	}
	if cfg.MinVersion > 0 {
		tlsConfig.MinVersion = cfg.MinVersion
	}

	if _, err := loadCertificate(cfg.CertFile, cfg.KeyFile); err != nil {
		return nil, fmt.Errorf("grpcserver: load server certificate: %w", err)
	}

	certFile, keyFile := cfg.CertFile, cfg.KeyFile
	tlsConfig.GetCertificate = func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
		cert, err := loadCertificate(certFile, keyFile)
		if err != nil {
			return nil, err
		}
		return &cert, nil
	}

	if cfg.CAFile != "" {
		pool, err := loadCACertificate(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("grpcserver: load CA certificate: %w", err)
		}
		tlsConfig.ClientCAs = pool
	}

	return credentials.NewTLS(tlsConfig), nil
}

func loadCertificate(certFile, keyFile string) (tls.Certificate, error) {
	certPEM, err := readTLSFile(certFile)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("read certificate file: %w", err)
	}

	keyPEM, err := readTLSFile(keyFile)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("read key file: %w", err)
	}

	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("parse certificate: %w", err)
	}

	return cert, nil
}

func loadCACertificate(caFile string) (*x509.CertPool, error) {
	caCert, err := readTLSFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("read CA certificate: %w", err)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caCert) {
		return nil, errors.New("failed to parse CA certificate")
	}

	return pool, nil
}

// readTLSFile opens path relative to its own directory with os.OpenInRoot,
// so symlinks cannot escape it.
func readTLSFile(path string) ([]byte, error) {
	if path == "" {
		return nil, errors.New("grpcserver: empty TLS file path")
	}

	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("grpcserver: resolve TLS path %q: %w", path, err)
	}

	f, err := os.OpenInRoot(filepath.Dir(abs), filepath.Base(abs))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return io.ReadAll(f)
}
