package oauth2client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	// maxResponseBytes mirrors the read limit x/oauth2 applies to token responses.
	maxResponseBytes = 1 << 20
	// excerptLength bounds how much of a bad response body reaches the logs.
	excerptLength = 10
)

// GrantExecutor performs the OAuth2 client-credentials exchange against a
// token endpoint and classifies the outcome. It holds no per-request state
// and is safe for concurrent use.
type GrantExecutor struct {
	httpClient *http.Client
	logger     logrus.FieldLogger
}

// Option is a functional option for configuring GrantExecutor.
type Option func(*GrantExecutor)

// WithHTTPClient sets the HTTP client used for token requests.
// Its Timeout bounds every exchange.
func WithHTTPClient(client *http.Client) Option {
	return func(e *GrantExecutor) {
		if client != nil {
			e.httpClient = client
		}
	}
}

// WithLogger sets the logger for request diagnostics.
// If not set, logrus.StandardLogger() is used.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(e *GrantExecutor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewGrantExecutor creates a GrantExecutor.
func NewGrantExecutor(opts ...Option) *GrantExecutor {
	e := &GrantExecutor{
		httpClient: http.DefaultClient,
		logger:     logrus.StandardLogger(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Execute requests an access token from endpoint.
//
// Provider and transport problems are reported through the returned Result,
// never as an error: a non-200 status or failed round trip yields
// TokenRequestError, and an unparseable body or missing access_token yields
// MalformedResponseError. A missing expires_in is not a failure; the Result
// then has HasLifetime == false.
func (e *GrantExecutor) Execute(ctx context.Context, endpoint string, creds ClientCredentials, params TokenRequestParams) Result {
	if ctx == nil {
		ctx = context.Background()
	}

	payload := params.payload(creds.ClientID)
	log := e.logger.WithField("endpoint", endpoint)
	log.WithField("payload", payload.Encode()).Debug("oauth2client: requesting token")

	recorder := &responseRecorder{base: e.httpClient.Transport}
	client := *e.httpClient
	client.Transport = recorder
	ctx = context.WithValue(ctx, oauth2.HTTPClient, &client)

	// The secret only lives inside this config and the single request built from it.
	config := clientcredentials.Config{
		ClientID:       creds.ClientID,
		ClientSecret:   creds.secret,
		TokenURL:       endpoint,
		EndpointParams: params.endpointParams(),
		AuthStyle:      oauth2.AuthStyleInParams,
	}

	token, err := config.Token(ctx)

	switch {
	case !recorder.responded:
		log.WithError(err).WithField("payload", payload.Encode()).
			Error("oauth2client: token request failed before a response was received")
		return failure(TokenRequestError, 0)
	case recorder.statusCode != http.StatusOK:
		log.WithFields(logrus.Fields{
			"status":  recorder.statusCode,
			"payload": payload.Encode(),
		}).Error("oauth2client: HTTP status failure when requesting token")
		return failure(TokenRequestError, recorder.statusCode)
	case err != nil:
		e.logMalformed(log, recorder.body, err)
		return failure(MalformedResponseError, recorder.statusCode)
	}

	lifetime, ok := expiresIn(token)
	if !ok {
		log.Warn("oauth2client: token endpoint did not indicate when the access token expires; the default lifetime applies")
	}

	return success(token.AccessToken, lifetime, ok)
}

func (e *GrantExecutor) logMalformed(log logrus.FieldLogger, body []byte, err error) {
	var decoded map[string]any
	if jsonErr := json.Unmarshal(body, &decoded); jsonErr != nil {
		log.WithError(err).WithField("excerpt", excerpt(body)).
			Error("oauth2client: token endpoint returned a non-JSON response")
		return
	}

	log.WithError(err).Error("oauth2client: token endpoint did not respond with an access token")
}

// expiresIn reads the wire "expires_in" field; non-positive values count as absent.
func expiresIn(token *oauth2.Token) (time.Duration, bool) {
	var seconds int64

	switch value := token.Extra("expires_in").(type) {
	case float64:
		seconds = int64(value)
	case int64:
		seconds = value
	case json.Number:
		n, err := value.Int64()
		if err != nil {
			return 0, false
		}
		seconds = n
	case string:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return 0, false
		}
		seconds = n
	default:
		return 0, false
	}

	if seconds <= 0 {
		return 0, false
	}

	return time.Duration(seconds) * time.Second, true
}

func excerpt(body []byte) string {
	if len(body) <= excerptLength {
		return string(body)
	}

	return string(body[:excerptLength]) + "..."
}

// responseRecorder keeps the status and body of the last response so the
// executor can classify failures that x/oauth2 reports as plain errors.
type responseRecorder struct {
	base http.RoundTripper

	responded  bool
	statusCode int
	body       []byte
}

// RoundTrip implements http.RoundTripper.
func (r *responseRecorder) RoundTrip(req *http.Request) (*http.Response, error) {
	base := r.base
	if base == nil {
		base = http.DefaultTransport
	}

	resp, err := base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	_ = resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("oauth2client: read token response: %w", err)
	}

	r.responded = true
	r.statusCode = resp.StatusCode
	r.body = body
	resp.Body = io.NopCloser(bytes.NewReader(body))

	return resp, nil
}
