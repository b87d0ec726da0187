// Package testutil provides test helpers for go-credmon packages.
//
// It includes an in-memory identity provider that serves OIDC discovery and token responses without real
// sockets, response builders for RoundTripper stubs, secret-file and certificate writers, and a helper to
// sign test JWTs.
//
// # Utilities
//
//   - MockIdentityProvider: discovery + token endpoints with call counting and recorded token forms
//   - RoundTripFunc, Response, JSONResponse, StaticJSONResponse: inline http.RoundTripper stubs
//   - WriteSecretFile: temporary client secret files
//   - WriteTestCACert / WriteTestCertAndKey: temporary CA and leaf certificates for TLS tests
//   - SignedTestJWT: HS256-signed tokens for claim inspection tests
//   - NewLocalHTTPServer: httptest server bound to 127.0.0.1
package testutil
