package credmon

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/AmmannChristian/go-credmon/discovery"
	"github.com/AmmannChristian/go-credmon/httpclient"
	"github.com/AmmannChristian/go-credmon/internal/metrics"
	"github.com/AmmannChristian/go-credmon/internal/tokeninfo"
	"github.com/AmmannChristian/go-credmon/oauth2client"
	"github.com/sirupsen/logrus"
)

// Sink stores an acquired access token for a user. A zero lifetime means the
// provider did not report one. Write reports whether the token was stored.
type Sink interface {
	Write(ctx context.Context, user, tokenName string, lifetime time.Duration, accessToken string) bool
}

// Engine refreshes the tokens of one identity provider: it resolves the
// token endpoint, runs the client credentials grant and hands the token to
// its Sink.
//
// An Engine is not safe for concurrent use; a Monitor drives it sequentially.
type Engine struct {
	cfg      ProviderConfig
	creds    oauth2client.ClientCredentials
	resolver *discovery.Resolver
	executor *oauth2client.GrantExecutor
	sink     Sink

	httpClient *http.Client
	clock      clock.Clock
	jitter     func() time.Duration
	metrics    *metrics.Metrics
	logger     logrus.FieldLogger
}

// Option configures an Engine.
type Option func(*Engine)

// WithHTTPClient replaces the client built from the provider configuration.
func WithHTTPClient(client *http.Client) Option {
	return func(e *Engine) {
		if client != nil {
			e.httpClient = client
		}
	}
}

// WithClock sets the clock used for endpoint caching and timing.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithJitter overrides the endpoint cache jitter source.
func WithJitter(jitter func() time.Duration) Option {
	return func(e *Engine) {
		e.jitter = jitter
	}
}

// WithMetrics records refresh and discovery outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithLogger sets the logger. Entries carry a provider field.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine loads the client secret and wires the resolver and grant
// executor of cfg. Configuration problems wrap oauth2client.ErrConfiguration.
func NewEngine(cfg ProviderConfig, sink Sink, opts ...Option) (*Engine, error) {
	if sink == nil {
		return nil, fmt.Errorf("%w: credmon: sink is required", oauth2client.ErrConfiguration)
	}

	e := &Engine{
		cfg:    cfg,
		sink:   sink,
		clock:  clock.NewClock(),
		logger: logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.WithField("provider", cfg.Name)

	creds, err := oauth2client.LoadClientCredentials(cfg.ClientID, cfg.ClientSecretFile)
	if err != nil {
		return nil, err
	}
	e.creds = creds

	if e.httpClient == nil {
		builder := httpclient.NewBuilder().WithTimeout(cfg.HTTPTimeout)
		if cfg.CAFile != "" {
			builder = builder.WithTLS(cfg.CAFile, "", "")
		}
		client, err := builder.Build()
		if err != nil {
			return nil, fmt.Errorf("%w: credmon: %s http client: %w", oauth2client.ErrConfiguration, cfg.Name, err)
		}
		e.httpClient = client
	}

	resolverOpts := []discovery.Option{
		discovery.WithStaticURL(cfg.TokenURL),
		discovery.WithHTTPClient(e.httpClient),
		discovery.WithClock(e.clock),
		discovery.WithLogger(e.logger),
		discovery.WithObserver(func(outcome discovery.Outcome) {
			e.metrics.ObserveDiscovery(cfg.Name, string(outcome))
		}),
	}
	if e.jitter != nil {
		resolverOpts = append(resolverOpts, discovery.WithJitter(e.jitter))
	}

	resolver, err := discovery.NewResolver(cfg.Issuer, cfg.EndpointLifetime(), resolverOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: credmon: %s: %w", oauth2client.ErrConfiguration, cfg.Name, err)
	}
	e.resolver = resolver

	e.executor = oauth2client.NewGrantExecutor(
		oauth2client.WithHTTPClient(e.httpClient),
		oauth2client.WithLogger(e.logger),
	)

	return e, nil
}

// Provider returns the provider name.
func (e *Engine) Provider() string {
	return e.cfg.Name
}

// Resolver exposes the token endpoint resolver.
func (e *Engine) Resolver() *discovery.Resolver {
	return e.resolver
}

// Refresh acquires a fresh token for user and stores it under tokenName.
// It returns an error only when no token endpoint could be resolved; a
// rejected or malformed grant is logged and reported as false.
func (e *Engine) Refresh(ctx context.Context, user, tokenName string) (bool, error) {
	start := e.clock.Now()
	log := e.logger.WithFields(logrus.Fields{"user": user, "token_name": tokenName})

	endpoint, err := e.resolver.Resolve(ctx)
	if err != nil {
		e.metrics.ObserveRefresh(e.cfg.Name, metrics.ResultDiscoveryError, e.clock.Since(start))
		return false, fmt.Errorf("credmon: refresh %s for %s: %w", tokenName, user, err)
	}

	result := e.executor.Execute(ctx, endpoint, e.creds, e.cfg.Params(user))
	if !result.OK() {
		log.WithFields(logrus.Fields{
			"reason":      result.Kind.String(),
			"status_code": result.StatusCode,
		}).Error("credmon: token request failed")
		e.metrics.ObserveRefresh(e.cfg.Name, metrics.ResultFailure, e.clock.Since(start))
		return false, nil
	}

	if summary, ok := tokeninfo.Inspect(result.AccessToken); ok {
		log.WithFields(logrus.Fields{
			"sub":    summary.Subject,
			"iss":    summary.Issuer,
			"scope":  summary.Scope,
			"expiry": summary.Expiry,
		}).Debug("credmon: acquired token")
	}

	var lifetime time.Duration
	if result.HasLifetime {
		lifetime = result.Lifetime
	}

	stored := e.sink.Write(ctx, user, tokenName, lifetime, result.AccessToken)
	outcome := metrics.ResultSuccess
	if !stored {
		outcome = metrics.ResultFailure
	}
	e.metrics.ObserveRefresh(e.cfg.Name, outcome, e.clock.Since(start))

	return stored, nil
}
