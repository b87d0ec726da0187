package oauth2client

import "time"

// ErrorKind classifies a failed grant exchange.
type ErrorKind int

const (
	// NoError marks a successful exchange.
	NoError ErrorKind = iota
	// TokenRequestError is a non-200 status or a failed round trip.
	TokenRequestError
	// MalformedResponseError is a 200 response that cannot be parsed or has no access_token.
	MalformedResponseError
)

// String returns the kind name used in logs and metrics.
func (k ErrorKind) String() string {
	switch k {
	case NoError:
		return "none"
	case TokenRequestError:
		return "token_request_error"
	case MalformedResponseError:
		return "malformed_response_error"
	default:
		return "unknown"
	}
}

// Result is the outcome of one grant exchange. It is either a success
// carrying an access token or a failure carrying a Kind, never both.
type Result struct {
	AccessToken string
	// Lifetime is the provider's expires_in; only meaningful if HasLifetime.
	Lifetime    time.Duration
	HasLifetime bool

	Kind ErrorKind
	// StatusCode is the HTTP status observed, 0 when no response arrived.
	StatusCode int
}

// OK reports whether the exchange produced an access token.
func (r Result) OK() bool {
	return r.Kind == NoError
}

func success(accessToken string, lifetime time.Duration, hasLifetime bool) Result {
	return Result{
		AccessToken: accessToken,
		Lifetime:    lifetime,
		HasLifetime: hasLifetime,
		Kind:        NoError,
		StatusCode:  200,
	}
}

func failure(kind ErrorKind, statusCode int) Result {
	return Result{Kind: kind, StatusCode: statusCode}
}
