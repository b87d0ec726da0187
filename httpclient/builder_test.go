package httpclient

import (
	"crypto/tls"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/AmmannChristian/go-credmon/internal/testutil"
)

// unwrapTransport returns the *http.Transport underneath the User-Agent wrapper.
func unwrapTransport(t *testing.T, client *http.Client) *http.Transport {
	t.Helper()

	rt := client.Transport
	if ua, ok := rt.(*UserAgentTransport); ok {
		rt = ua.Base
	}

	transport, ok := rt.(*http.Transport)
	if !ok {
		t.Fatalf("expected *http.Transport, got %T", rt)
	}
	return transport
}

func TestNewBuilder(t *testing.T) {
	builder := NewBuilder()

	if builder == nil {
		t.Fatal("builder should not be nil")
	}

	if builder.timeout != DefaultTimeout {
		t.Errorf("expected default timeout %v, got %v", DefaultTimeout, builder.timeout)
	}

	if builder.userAgent != DefaultUserAgent {
		t.Errorf("expected default user agent %q, got %q", DefaultUserAgent, builder.userAgent)
	}

	if !builder.followRedirects {
		t.Error("redirects should be enabled by default")
	}
}

func TestBuilder_WithTLS(t *testing.T) {
	builder := NewBuilder().WithTLS("/ca.crt", "/client.crt", "/client.key")

	if !builder.tlsEnabled {
		t.Error("TLS should be enabled")
	}
	if builder.tlsCAFile != "/ca.crt" || builder.tlsCertFile != "/client.crt" || builder.tlsKeyFile != "/client.key" {
		t.Errorf("unexpected TLS files: %q %q %q", builder.tlsCAFile, builder.tlsCertFile, builder.tlsKeyFile)
	}
}

func TestBuilder_WithTimeout(t *testing.T) {
	tests := []struct {
		name    string
		timeout time.Duration
		want    time.Duration
	}{
		{name: "custom", timeout: 5 * time.Second, want: 5 * time.Second},
		{name: "zero keeps default", timeout: 0, want: DefaultTimeout},
		{name: "negative keeps default", timeout: -time.Second, want: DefaultTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewBuilder().WithTimeout(tt.timeout).Build()
			if err != nil {
				t.Fatalf("Build failed: %v", err)
			}
			if client.Timeout != tt.want {
				t.Errorf("expected timeout %v, got %v", tt.want, client.Timeout)
			}
		})
	}
}

func TestBuilder_Build_Simple(t *testing.T) {
	client, err := NewBuilder().Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	ua, ok := client.Transport.(*UserAgentTransport)
	if !ok {
		t.Fatalf("expected *UserAgentTransport, got %T", client.Transport)
	}
	if ua.UserAgent != DefaultUserAgent {
		t.Errorf("expected user agent %q, got %q", DefaultUserAgent, ua.UserAgent)
	}

	transport := unwrapTransport(t, client)
	if transport.TLSClientConfig == nil || transport.TLSClientConfig.MinVersion != tls.VersionTLS12 {
		t.Error("expected TLS 1.2 minimum by default")
	}
}

func TestBuilder_Build_WithoutUserAgent(t *testing.T) {
	client, err := NewBuilder().WithUserAgent("").Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if _, ok := client.Transport.(*UserAgentTransport); ok {
		t.Error("empty user agent should not wrap the transport")
	}
}

func TestBuilder_Build_WithoutRedirects(t *testing.T) {
	client, err := NewBuilder().WithoutRedirects().Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if client.CheckRedirect == nil {
		t.Fatal("CheckRedirect should be set")
	}

	if err := client.CheckRedirect(nil, nil); err != http.ErrUseLastResponse {
		t.Errorf("expected ErrUseLastResponse, got %v", err)
	}
}

func TestBuilder_Build_WithBaseTransport(t *testing.T) {
	var gotUA string
	base := testutil.RoundTripFunc(func(req *http.Request) (*http.Response, error) {
		gotUA = req.Header.Get("User-Agent")
		return testutil.Response(http.StatusOK, "text/plain", "ok")(req)
	})

	client, err := NewBuilder().
		WithBaseTransport(base).
		WithUserAgent("go-credmon/test").
		WithTimeout(10 * time.Second).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	resp, err := client.Get("https://idp.example.com/.well-known/openid-configuration")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if gotUA != "go-credmon/test" {
		t.Errorf("expected user agent to be set, got %q", gotUA)
	}
}

func TestBuilder_BuildTLSConfig_Simple(t *testing.T) {
	builder := NewBuilder()
	builder.tlsEnabled = true

	tlsConfig, err := builder.buildTLSConfig()
	if err != nil {
		t.Fatalf("buildTLSConfig failed: %v", err)
	}

	if tlsConfig.MinVersion != tls.VersionTLS12 {
		t.Errorf("expected TLS 1.2, got %d", tlsConfig.MinVersion)
	}
}

func TestBuilder_BuildTLSConfig_WithCAFile(t *testing.T) {
	caFile := filepath.Join(t.TempDir(), "ca.crt")
	testutil.WriteTestCACert(t, caFile)

	builder := NewBuilder()
	builder.tlsEnabled = true
	builder.tlsCAFile = caFile

	tlsConfig, err := builder.buildTLSConfig()
	if err != nil {
		t.Fatalf("buildTLSConfig failed: %v", err)
	}

	if tlsConfig.RootCAs == nil {
		t.Error("RootCAs should not be nil")
	}
}

func TestBuilder_BuildTLSConfig_Errors(t *testing.T) {
	badCA := filepath.Join(t.TempDir(), "ca.crt")
	if err := os.WriteFile(badCA, []byte("invalid cert content"), 0o600); err != nil {
		t.Fatalf("failed to write CA file: %v", err)
	}

	tests := []struct {
		name     string
		caFile   string
		certFile string
		keyFile  string
	}{
		{name: "missing CA file", caFile: "/nonexistent/ca.crt"},
		{name: "invalid CA content", caFile: badCA},
		{name: "cert without key", certFile: "/path/to/cert.crt"},
		{name: "key without cert", keyFile: "/path/to/key.pem"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			builder := NewBuilder().WithTLS(tt.caFile, tt.certFile, tt.keyFile)
			if _, err := builder.buildTLSConfig(); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestBuilder_Build_WithTLS_UsesConfig(t *testing.T) {
	caFile := filepath.Join(t.TempDir(), "ca.crt")
	testutil.WriteTestCACert(t, caFile)

	client, err := NewBuilder().WithTLS(caFile, "", "").Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	transport := unwrapTransport(t, client)
	if transport.TLSClientConfig == nil || transport.TLSClientConfig.RootCAs == nil {
		t.Error("RootCAs should be configured from CA file")
	}
}

func TestBuilder_Build_WithMutualTLS_LoadsCertificates(t *testing.T) {
	tmpDir := t.TempDir()
	caFile := filepath.Join(tmpDir, "ca.crt")
	certFile := filepath.Join(tmpDir, "client.crt")
	keyFile := filepath.Join(tmpDir, "client.key")

	testutil.WriteTestCACert(t, caFile)
	testutil.WriteTestCertAndKey(t, certFile, keyFile)

	client, err := NewBuilder().WithTLS(caFile, certFile, keyFile).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if len(unwrapTransport(t, client).TLSClientConfig.Certificates) == 0 {
		t.Fatal("expected client certificates to be loaded")
	}
}

func TestBuilder_Build_WithMutualTLS_InvalidCert(t *testing.T) {
	tmpDir := t.TempDir()
	certFile := filepath.Join(tmpDir, "client.crt")
	keyFile := filepath.Join(tmpDir, "client.key")

	if err := os.WriteFile(certFile, []byte("bad cert"), 0o600); err != nil {
		t.Fatalf("failed to write cert file: %v", err)
	}
	if err := os.WriteFile(keyFile, []byte("bad key"), 0o600); err != nil {
		t.Fatalf("failed to write key file: %v", err)
	}

	_, err := NewBuilder().WithTLS("", certFile, keyFile).Build()
	if err == nil {
		t.Fatal("expected error for invalid cert/key")
	}

	if !strings.Contains(err.Error(), "load client certificate") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestBuilder_Build_WithInsecureSkipVerifyOnly(t *testing.T) {
	client, err := NewBuilder().WithInsecureSkipVerify().Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	transport := unwrapTransport(t, client)
	if transport.TLSClientConfig == nil || !transport.TLSClientConfig.InsecureSkipVerify {
		t.Fatal("expected InsecureSkipVerify to be true")
	}
}

func TestBuilder_Build_FallbackDefaultTransport(t *testing.T) {
	origDefault := http.DefaultTransport
	http.DefaultTransport = testutil.RoundTripFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Header:     make(http.Header),
			Body:       io.NopCloser(strings.NewReader("ok")),
			Request:    req,
		}, nil
	})
	t.Cleanup(func() { http.DefaultTransport = origDefault })

	client, err := NewBuilder().WithTLS("", "", "").Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	resp, err := client.Get("https://example.com")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
}

func TestBuilder_Build_AgainstLocalServer(t *testing.T) {
	var gotUA string
	server := testutil.NewLocalHTTPServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
	}))

	client, err := NewBuilder().WithTimeout(5 * time.Second).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	resp, err := client.Get(server.URL)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	if gotUA != DefaultUserAgent {
		t.Errorf("expected user agent %q, got %q", DefaultUserAgent, gotUA)
	}
}

// Benchmark tests
func BenchmarkBuilder_Build(b *testing.B) {
	for i := 0; i < b.N; i++ {
		if _, err := NewBuilder().Build(); err != nil {
			b.Fatal(err)
		}
	}
}
