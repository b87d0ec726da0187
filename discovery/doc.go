// Package discovery resolves the token endpoint of an OAuth2/OIDC identity provider.
//
// A Resolver returns, in order of precedence, a statically configured token URL, a cached endpoint that is
// still fresh, or the token_endpoint published in the issuer's OIDC metadata document. Discovered endpoints
// are cached for a lifetime plus 0-60 seconds of jitter chosen once per Resolver.
//
// # Failure model
//
//   - Discovery failures (non-200, undecodable body, missing or non-string token_endpoint) are logged
//   - If an endpoint was discovered before, it is returned even when stale
//   - Only when nothing usable exists does Resolve fail, with an error wrapping ErrDiscovery
//
// # Quick Start
//
//	resolver, err := discovery.NewResolver("https://idp.example.com", time.Hour,
//	    discovery.WithHTTPClient(client),
//	    discovery.WithLogger(logger),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	endpoint, err := resolver.Resolve(ctx)
//
// A Resolver is not safe for concurrent use; callers refresh one provider at a time.
package discovery
