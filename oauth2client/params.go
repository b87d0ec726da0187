package oauth2client

import (
	"net/url"
	"strings"
)

// Form field names sent to the token endpoint.
const (
	FieldClientID     = "client_id"
	FieldClientSecret = "client_secret"
	FieldGrantType    = "grant_type"
	FieldScopes       = "scopes"
	FieldAudience     = "audience"

	GrantTypeClientCredentials = "client_credentials"
)

// WLCG token profile names that add the "wlcg" scope.
const (
	ProfileWLCG   = "wlcg"
	ProfileWLCGv1 = "wlcg:1.0"
)

// TokenRequestParams describes what a single token request asks for.
type TokenRequestParams struct {
	// Scopes are the configured scopes, before profile and subject expansion.
	Scopes []string
	// Audience is space-joined on the wire, in order.
	Audience []string
	// Subject, when set, adds a "condor.user:<subject>" scope.
	Subject string
	// Profile "wlcg" or "wlcg:1.0" adds the "wlcg" scope.
	Profile string
}

// RequestedScopes returns the scopes that go on the wire: the configured
// scopes, then "wlcg" for WLCG profiles, then the subject scope.
// The receiver's Scopes slice is never modified.
func (p TokenRequestParams) RequestedScopes() []string {
	scopes := make([]string, 0, len(p.Scopes)+2)
	scopes = append(scopes, p.Scopes...)

	if p.Profile == ProfileWLCG || p.Profile == ProfileWLCGv1 {
		scopes = append(scopes, "wlcg")
	}
	if p.Subject != "" {
		scopes = append(scopes, "condor.user:"+escapeSubject(p.Subject))
	}

	return scopes
}

// payload builds the form without the client secret. It is safe to log.
func (p TokenRequestParams) payload(clientID string) url.Values {
	values := url.Values{}
	values.Set(FieldClientID, clientID)
	values.Set(FieldGrantType, GrantTypeClientCredentials)

	for key, value := range p.endpointParams() {
		values[key] = value
	}

	return values
}

// endpointParams holds the fields the grant library does not set itself.
func (p TokenRequestParams) endpointParams() url.Values {
	values := url.Values{}
	if scopes := p.RequestedScopes(); len(scopes) > 0 {
		values.Set(FieldScopes, strings.Join(scopes, " "))
	}
	if len(p.Audience) > 0 {
		values.Set(FieldAudience, strings.Join(p.Audience, " "))
	}

	return values
}

// escapeSubject percent-encodes everything except unreserved characters,
// spaces included ("%20", not "+").
func escapeSubject(subject string) string {
	return strings.ReplaceAll(url.QueryEscape(subject), "+", "%20")
}
