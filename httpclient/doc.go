// Package httpclient builds the HTTP clients a credential monitor uses to reach identity providers.
//
// The Builder produces an http.Client with a request timeout (the only bound on discovery and token calls),
// TLS 1.2+ by default, an optional custom CA or mTLS client certificate, a User-Agent header and an optional
// redirect policy. UserAgentTransport can wrap any RoundTripper on its own.
//
// # Quick Start
//
//	client, err := httpclient.NewBuilder().
//	    WithTLS("/etc/credmon/idp-ca.crt", "", "").
//	    WithTimeout(20 * time.Second).
//	    Build()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Clients returned by Build are safe for concurrent use.
package httpclient
