// Package oauth2client performs the OAuth2 client-credentials exchange on behalf of a credential monitor.
//
// It loads client credentials once at construction, derives the requested scopes for an identity, sends a
// single token request per call and classifies the outcome into a Result instead of returning errors, so a
// long-running monitor can keep going when a provider misbehaves.
//
// # Features
//
//   - Secret loading from a file with whitespace trimming (LoadClientCredentials)
//   - Scope derivation for WLCG profiles and per-user "condor.user:<name>" scopes
//   - Form-encoded client-credentials grant with "scopes" and "audience" extension fields
//   - Outcome classification: TokenRequestError, MalformedResponseError, or success
//   - The client secret never appears in logs or in any retained payload
//
// # Quick Start
//
//	creds, err := oauth2client.LoadClientCredentials("client-id", "/etc/credmon/client.secret")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	executor := oauth2client.NewGrantExecutor(oauth2client.WithHTTPClient(client))
//	result := executor.Execute(ctx, "https://idp.example.com/token", creds, oauth2client.TokenRequestParams{
//	    Scopes:  []string{"storage.read:/"},
//	    Profile: oauth2client.ProfileWLCG,
//	    Subject: "alice",
//	})
//	if !result.OK() {
//	    // already logged; try again on the next cycle
//	}
//
// # Notes
//
//   - Responses other than HTTP 200 are failures even when they carry a token.
//   - A missing expires_in yields a successful Result with HasLifetime == false.
package oauth2client
