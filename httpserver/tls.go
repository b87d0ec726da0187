package httpserver

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// TLSConfig holds TLS configuration for the metrics server.
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

// NewTLSConfig loads the server certificate (and optional client CA) into a
// *tls.Config suitable for http.Server.TLSConfig.
func NewTLSConfig(cfg *TLSConfig) (*tls.Config, error) {
	if cfg == nil {
		return nil, errors.New("httpserver: TLS config is nil")
	}
	if cfg.CertFile == "" {
		return nil, errors.New("httpserver: server certificate file is required")
	}
	if cfg.KeyFile == "" {
		return nil, errors.New("httpserver: server key file is required")
	}

	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
		ClientAuth: cfg.ClientAuth,
	}
	if cfg.MinVersion > 0 {
		tlsConfig.MinVersion = cfg.MinVersion
	}

	certPEM, err := readTLSFile(cfg.CertFile)
	if err != nil {
		return nil, fmt.Errorf("httpserver: read certificate file: %w", err)
	}
	keyPEM, err := readTLSFile(cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("httpserver: read key file: %w", err)
	}
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, fmt.Errorf("httpserver: parse certificate: %w", err)
	}
	tlsConfig.Certificates = []tls.Certificate{cert}

	if cfg.CAFile != "" {
		caPEM, err := readTLSFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("httpserver: read CA certificate: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, errors.New("httpserver: failed to parse CA certificate")
		}
		tlsConfig.ClientCAs = pool
	}

	return tlsConfig, nil
}

// readTLSFile opens path relative to its own directory with os.OpenInRoot,
// so symlinks cannot escape it.
func readTLSFile(path string) ([]byte, error) {
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("resolve TLS path %q: %w", path, err)
	}

	f, err := os.OpenInRoot(filepath.Dir(abs), filepath.Base(abs))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return io.ReadAll(f)
}
