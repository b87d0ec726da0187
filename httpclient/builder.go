package httpclient

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"
)

// DefaultTimeout bounds every identity provider call unless overridden.
const DefaultTimeout = 30 * time.Second

// Builder provides a fluent interface for constructing the HTTP client a
// credential monitor uses to talk to its identity provider: request timeout,
// TLS/mTLS, User-Agent and redirect policy.
type Builder struct {
	// TLS configuration
	tlsEnabled    bool
	tlsCAFile     string
	tlsCertFile   string
	tlsKeyFile    string
	tlsSkipVerify bool

	// HTTP client configuration
	timeout         time.Duration
	baseTransport   http.RoundTripper
	userAgent       string
	followRedirects bool
}

// NewBuilder creates a new HTTP client builder.
func NewBuilder() *Builder {
	return &Builder{
		timeout:         DefaultTimeout,
		userAgent:       DefaultUserAgent,
		followRedirects: true,
	}
}

// WithTLS enables TLS for the connection.
//
// Parameters:
//   - caFile: Path to CA certificate for server verification (optional, uses system roots if empty)
//   - certFile: Path to client certificate for mTLS (optional, must be paired with keyFile)
//   - keyFile: Path to client private key for mTLS (optional, must be paired with certFile)
func (b *Builder) WithTLS(caFile, certFile, keyFile string) *Builder {
	b.tlsEnabled = true
	b.tlsCAFile = caFile
	b.tlsCertFile = certFile
	b.tlsKeyFile = keyFile
	return b
}

// WithInsecureSkipVerify disables TLS certificate verification (NOT RECOMMENDED for production).
// This should only be used for testing or development purposes.
func (b *Builder) WithInsecureSkipVerify() *Builder {
	b.tlsSkipVerify = true
	return b
}

// WithTimeout sets the request timeout for the HTTP client.
// Zero or negative values keep DefaultTimeout.
func (b *Builder) WithTimeout(timeout time.Duration) *Builder {
	if timeout > 0 {
		b.timeout = timeout
	}
	return b
}

// WithBaseTransport sets a custom base transport.
// TLS settings are not applied to a custom transport.
func (b *Builder) WithBaseTransport(transport http.RoundTripper) *Builder {
	b.baseTransport = transport
	return b
}

// WithUserAgent sets the User-Agent header. An empty value disables it.
func (b *Builder) WithUserAgent(userAgent string) *Builder {
	b.userAgent = userAgent
	return b
}

// WithoutRedirects disables automatic redirect following.
// By default, the client follows up to 10 redirects.
func (b *Builder) WithoutRedirects() *Builder {
	b.followRedirects = false
	return b
}

// Build constructs the HTTP client with the configured options.
//
// Returns:
//   - *http.Client: Configured HTTP client
//   - error: Error if configuration is invalid
func (b *Builder) Build() (*http.Client, error) {
	transport := b.baseTransport
	if transport == nil {
		var err error
		transport, err = b.defaultTransport()
		if err != nil {
			return nil, err
		}
	}

	if b.userAgent != "" {
		transport = NewUserAgentTransport(b.userAgent, transport)
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   b.timeout,
	}

	if !b.followRedirects {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	return client, nil
}

func (b *Builder) defaultTransport() (http.RoundTripper, error) {
	httpTransport, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		// Whatever default transport is configured (e.g., a test stub) is used as is.
		return http.DefaultTransport, nil
	}

	httpTransport = httpTransport.Clone()
	if b.tlsEnabled || b.tlsSkipVerify {
		tlsConfig, err := b.buildTLSConfig()
		if err != nil {
			return nil, fmt.Errorf("httpclient: TLS config failed: %w", err)
		}
		httpTransport.TLSClientConfig = tlsConfig
	} else {
		// Set secure TLS defaults even when TLS is not explicitly configured
		httpTransport.TLSClientConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	return httpTransport, nil
}

// buildTLSConfig constructs the TLS configuration for the HTTP client.
func (b *Builder) buildTLSConfig() (*tls.Config, error) {
	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: b.tlsSkipVerify, // #nosec G402
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

	if b.tlsCertFile != "" && b.tlsKeyFile != "" {
		cert, err := tls.LoadX509KeyPair(b.tlsCertFile, b.tlsKeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	} else if b.tlsCertFile != "" || b.tlsKeyFile != "" {
		return nil, errors.New("both TLS cert and key files must be provided for mTLS")
	}

	return tlsConfig, nil
}
