package httpclient

import (
	"net/http"
)

// DefaultUserAgent identifies the monitor to identity providers.
const DefaultUserAgent = "go-credmon"

// UserAgentTransport is an http.RoundTripper that sets a User-Agent header on
// outgoing requests that do not carry one already.
//
// It wraps an existing transport (typically http.DefaultTransport).
type UserAgentTransport struct {
	// Base is the underlying HTTP transport. If nil, http.DefaultTransport is used.
	Base http.RoundTripper

	// UserAgent is the header value to send.
	UserAgent string
}

// RoundTrip implements http.RoundTripper interface.
func (t *UserAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	if t.UserAgent == "" || req.Header.Get("User-Agent") != "" {
		return base.RoundTrip(req)
	}

	// Clone the request to avoid modifying the original
	reqClone := req.Clone(req.Context())
	reqClone.Header.Set("User-Agent", t.UserAgent)

	return base.RoundTrip(reqClone)
}

// NewUserAgentTransport creates a UserAgentTransport.
// The base transport defaults to http.DefaultTransport if not specified.
func NewUserAgentTransport(userAgent string, base http.RoundTripper) *UserAgentTransport {
	if base == nil {
		base = http.DefaultTransport
	}

	return &UserAgentTransport{
		Base:      base,
		UserAgent: userAgent,
	}
}
