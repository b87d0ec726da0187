package testutil

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"io"
	"math/big"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DiscoveryPath is where identity providers publish OIDC metadata.
const DiscoveryPath = "/.well-known/openid-configuration"

// NewLocalHTTPServer starts an HTTP server bound to IPv4 loopback only.
// The sandbox blocks IPv6 listeners, so force tcp4 to keep tests runnable.
func NewLocalHTTPServer(tb testing.TB, handler http.Handler) *httptest.Server {
	tb.Helper()

	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		tb.Fatalf("failed to create IPv4 listener: %v", err)
	}

	server := httptest.NewUnstartedServer(handler)
	server.Listener = listener
	server.Start()
	tb.Cleanup(server.Close)

	return server
}

// RoundTripFunc allows inlining http.RoundTripper implementations.
type RoundTripFunc func(*http.Request) (*http.Response, error)

// RoundTrip calls the underlying function.
func (f RoundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// JSONResponse returns a RoundTripFunc that answers with status and a JSON body.
func JSONResponse(status int, body string) RoundTripFunc {
	return Response(status, "application/json", body)
}

// StaticJSONResponse returns a RoundTripFunc that always responds 200 with the provided JSON body.
func StaticJSONResponse(body string) RoundTripFunc {
	return JSONResponse(http.StatusOK, body)
}

// Response returns a RoundTripFunc that answers with the given status, content type and body.
func Response(status int, contentType, body string) RoundTripFunc {
	return func(req *http.Request) (*http.Response, error) {
		header := make(http.Header)
		if contentType != "" {
			header.Set("Content-Type", contentType)
		}

		return &http.Response{
			StatusCode: status,
			Status:     fmt.Sprintf("%d %s", status, http.StatusText(status)),
			Header:     header,
			Body:       io.NopCloser(strings.NewReader(body)),
			Request:    req,
		}, nil
	}
}

// MockIdentityProvider simulates an OIDC discovery document and a token
// endpoint without real sockets. It counts calls and records token forms.
type MockIdentityProvider struct {
	Issuer   string
	TokenURL string

	mu             sync.Mutex
	discovery      RoundTripFunc
	token          RoundTripFunc
	discoveryCalls int
	tokenForms     []url.Values
}

// NewMockIdentityProvider builds a provider whose discovery document points
// at its own /token endpoint, which issues a one hour token.
func NewMockIdentityProvider(tb testing.TB) *MockIdentityProvider {
	tb.Helper()

	m := &MockIdentityProvider{
		Issuer:   "https://mock-idp.example.com",
		TokenURL: "https://mock-idp.example.com/token",
	}
	m.discovery = StaticJSONResponse(DiscoveryDocument(m.Issuer, m.TokenURL))
	m.token = StaticJSONResponse(`{
		"access_token": "mock-access-token",
		"token_type": "Bearer",
		"expires_in": 3600
	}`)

	return m
}

// DiscoveryDocument renders a minimal OIDC metadata document.
func DiscoveryDocument(issuer, tokenURL string) string {
	return fmt.Sprintf(`{"issuer": %q, "token_endpoint": %q, "jwks_uri": %q}`, issuer, tokenURL, issuer+"/jwks")
}

// SetDiscovery replaces the discovery handler.
func (m *MockIdentityProvider) SetDiscovery(handler RoundTripFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.discovery = handler
}

// SetToken replaces the token endpoint handler.
func (m *MockIdentityProvider) SetToken(handler RoundTripFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = handler
}

// DiscoveryCalls reports how many discovery requests were served.
func (m *MockIdentityProvider) DiscoveryCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.discoveryCalls
}

// TokenForms returns copies of the form bodies sent to the token endpoint.
func (m *MockIdentityProvider) TokenForms() []url.Values {
	m.mu.Lock()
	defer m.mu.Unlock()

	forms := make([]url.Values, len(m.tokenForms))
	copy(forms, m.tokenForms)
	return forms
}

// Client returns an HTTP client routed to the mock provider.
func (m *MockIdentityProvider) Client() *http.Client {
	return &http.Client{Transport: RoundTripFunc(m.roundTrip), Timeout: 5 * time.Second}
}

func (m *MockIdentityProvider) roundTrip(req *http.Request) (*http.Response, error) {
	switch {
	case req.Method == http.MethodGet && req.URL.Path == DiscoveryPath:
		m.mu.Lock()
		m.discoveryCalls++
		handler := m.discovery
		m.mu.Unlock()
		return handler(req)
	case req.Method == http.MethodPost && req.URL.Path == "/token":
		if err := req.ParseForm(); err != nil {
			return nil, err
		}
		m.mu.Lock()
		m.tokenForms = append(m.tokenForms, req.PostForm)
		handler := m.token
		m.mu.Unlock()
		return handler(req)
	default:
		return Response(http.StatusNotFound, "text/plain", "not found")(req)
	}
}

// TestSigningKey is the HMAC key used by SignedTestJWT.
var TestSigningKey = []byte("credmon-test-signing-key")

// SignedTestJWT signs claims with TestSigningKey using HS256.
func SignedTestJWT(tb testing.TB, claims jwt.MapClaims) string {
	tb.Helper()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(TestSigningKey)
	if err != nil {
		tb.Fatalf("failed to sign token: %v", err)
	}

	return token
}

// WriteSecretFile writes contents to a 0600 file under tb.TempDir and returns its path.
func WriteSecretFile(tb testing.TB, contents string) string {
	tb.Helper()

	path := tb.TempDir() + "/client.secret"
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		tb.Fatalf("failed to write secret file: %v", err)
	}

	return path
}

// WriteTestCACert writes a self-signed CA certificate to the provided path for TLS tests.
func WriteTestCACert(tb testing.TB, path string) {
	tb.Helper()

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		tb.Fatalf("failed to generate CA key: %v", err)
	}

	template := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		Subject:               pkix.Name{CommonName: "test-ca"},
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &privateKey.PublicKey, privateKey)
	if err != nil {
		tb.Fatalf("failed to create CA certificate: %v", err)
	}

	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	if err := os.WriteFile(path, pemBytes, 0o600); err != nil {
		tb.Fatalf("failed to write CA certificate: %v", err)
	}
}

// WriteTestCertAndKey writes a self-signed certificate and key to the provided paths.
func WriteTestCertAndKey(tb testing.TB, certPath, keyPath string) {
	tb.Helper()

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		tb.Fatalf("failed to generate key: %v", err)
	}

	template := &x509.Certificate{
		SerialNumber: big.NewInt(2),
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		Subject:      pkix.Name{CommonName: "test-cert"},
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth, x509.ExtKeyUsageServerAuth},
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &privateKey.PublicKey, privateKey)
	if err != nil {
		tb.Fatalf("failed to create certificate: %v", err)
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	if err := os.WriteFile(certPath, certPEM, 0o600); err != nil {
		tb.Fatalf("failed to write certificate: %v", err)
	}

	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(privateKey)})
	if err := os.WriteFile(keyPath, keyPEM, 0o600); err != nil {
		tb.Fatalf("failed to write key: %v", err)
	}
}
