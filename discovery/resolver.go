package discovery

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/sirupsen/logrus"
)

// ErrDiscovery is returned when no token endpoint can be determined: there
// is no static URL, no cached endpoint, and metadata discovery failed.
var ErrDiscovery = errors.New("discovery: no token endpoint available")

const (
	// DefaultEndpointLifetime is how long a discovered endpoint is trusted.
	DefaultEndpointLifetime = time.Hour
	// MaxJitter bounds the random extension added to the endpoint lifetime.
	MaxJitter = 60 * time.Second
)

// CacheState is derived from the cached URL, its resolution time and the TTL.
type CacheState int

const (
	// Unset means nothing was ever discovered; discovery is mandatory.
	Unset CacheState = iota
	// Fresh means the cached endpoint is returned without a network call.
	Fresh
	// Stale means discovery is attempted; the cached endpoint is the fallback.
	Stale
)

func (s CacheState) String() string {
	switch s {
	case Unset:
		return "unset"
	case Fresh:
		return "fresh"
	case Stale:
		return "stale"
	default:
		return "unknown"
	}
}

// Outcome describes how a Resolve call produced (or failed to produce) its endpoint.
type Outcome string

const (
	OutcomeStatic        Outcome = "static"
	OutcomeCached        Outcome = "cached"
	OutcomeDiscovered    Outcome = "discovered"
	OutcomeStaleFallback Outcome = "stale_fallback"
	OutcomeFailed        Outcome = "failed"
)

// Resolver determines the token endpoint of one identity provider.
//
// A Resolver is not safe for concurrent use: the cache read and update in
// Resolve are not atomic. Callers serialize Resolve calls per provider.
type Resolver struct {
	issuer    string
	staticURL string
	ttl       time.Duration

	url        string
	resolvedAt time.Time

	httpClient *http.Client
	clock      clock.Clock
	logger     logrus.FieldLogger
	observer   func(Outcome)
	jitter     func() time.Duration
}

// Option is a functional option for configuring Resolver.
type Option func(*Resolver)

// WithStaticURL configures a fixed token endpoint. Discovery and the cache
// are bypassed entirely when it is non-empty.
func WithStaticURL(tokenURL string) Option {
	return func(r *Resolver) {
		r.staticURL = tokenURL
	}
}

// WithHTTPClient sets the HTTP client used for discovery requests.
func WithHTTPClient(client *http.Client) Option {
	return func(r *Resolver) {
		if client != nil {
			r.httpClient = client
		}
	}
}

// WithClock sets the time source used for cache freshness.
func WithClock(c clock.Clock) Option {
	return func(r *Resolver) {
		if c != nil {
			r.clock = c
		}
	}
}

// WithLogger sets the logger. If not set, logrus.StandardLogger() is used.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithObserver registers a callback invoked with the outcome of every Resolve call.
func WithObserver(observer func(Outcome)) Option {
	return func(r *Resolver) {
		r.observer = observer
	}
}

// WithJitter replaces the random jitter source. The returned value is clamped to [0, MaxJitter].
func WithJitter(jitter func() time.Duration) Option {
	return func(r *Resolver) {
		if jitter != nil {
			r.jitter = jitter
		}
	}
}

// NewResolver creates a Resolver for issuer.
//
// Parameters:
//   - issuer: OIDC issuer URL; metadata is read from <issuer>/.well-known/openid-configuration
//   - lifetime: how long a discovered endpoint stays fresh (0 uses DefaultEndpointLifetime)
//   - opts: Optional configuration (WithStaticURL, WithHTTPClient, WithClock, WithLogger, ...)
//
// The TTL is lifetime plus a jitter of 0-60 seconds drawn once here, so
// monitors sharing a configuration do not rediscover in lockstep.
func NewResolver(issuer string, lifetime time.Duration, opts ...Option) (*Resolver, error) {
	r := &Resolver{
		issuer:     issuer,
		httpClient: http.DefaultClient,
		clock:      clock.NewClock(),
		logger:     logrus.StandardLogger(),
		jitter:     randomJitter,
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.issuer == "" && r.staticURL == "" {
		return nil, errors.New("discovery: issuer is required when no static token URL is configured")
	}

	if lifetime <= 0 {
		lifetime = DefaultEndpointLifetime
	}
	r.ttl = lifetime + clampJitter(r.jitter())

	return r, nil
}

// TTL returns the jittered cache lifetime fixed at construction.
func (r *Resolver) TTL() time.Duration {
	return r.ttl
}

// State reports the derived cache state at the current clock time.
func (r *Resolver) State() CacheState {
	if r.url == "" {
		return Unset
	}
	if r.resolvedAt.Add(r.ttl).After(r.clock.Now()) {
		return Fresh
	}
	return Stale
}

// Resolve returns the token endpoint to use for the next grant request.
//
// Order of precedence: static URL, fresh cache, discovery. When discovery
// fails and a previously discovered endpoint exists (even a stale one), that
// endpoint is returned and the failure is only logged. An error wrapping
// ErrDiscovery is returned only when nothing usable exists.
func (r *Resolver) Resolve(ctx context.Context) (string, error) {
	if r.staticURL != "" {
		r.observe(OutcomeStatic)
		return r.staticURL, nil
	}

	if r.State() == Fresh {
		r.observe(OutcomeCached)
		return r.url, nil
	}

	endpoint, err := r.discover(ctx)
	if err != nil {
		r.logger.WithError(err).WithField("issuer", r.issuer).
			Error("discovery: OIDC metadata discovery failed")

		if r.url != "" {
			r.logger.WithFields(logrus.Fields{
				"issuer":   r.issuer,
				"endpoint": r.url,
			}).Warn("discovery: using previously resolved token endpoint")
			r.observe(OutcomeStaleFallback)
			return r.url, nil
		}

		r.observe(OutcomeFailed)
		return "", fmt.Errorf("%w: %w", ErrDiscovery, err)
	}

	r.url = endpoint
	r.resolvedAt = r.clock.Now()
	r.logger.WithFields(logrus.Fields{
		"issuer":   r.issuer,
		"endpoint": endpoint,
	}).Info("discovery: resolved token endpoint")
	r.observe(OutcomeDiscovered)

	return endpoint, nil
}

// discover fetches the issuer's metadata document. A non-200 status, an
// undecodable body (including a non-string token_endpoint) and a missing
// token_endpoint are all errors.
func (r *Resolver) discover(ctx context.Context) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	ctx = oidc.ClientContext(ctx, r.httpClient)
	// The issuer field of the document is not checked against the configured issuer.
	ctx = oidc.InsecureIssuerURLContext(ctx, r.issuer)

	provider, err := oidc.NewProvider(ctx, r.issuer)
	if err != nil {
		return "", fmt.Errorf("discovery: %s: %w", r.issuer, err)
	}

	tokenURL := provider.Endpoint().TokenURL
	if tokenURL == "" {
		return "", fmt.Errorf("discovery: %s: response lacked the token_endpoint key", r.issuer)
	}

	return tokenURL, nil
}

func (r *Resolver) observe(outcome Outcome) {
	if r.observer != nil {
		r.observer(outcome)
	}
}

// randomJitter draws whole seconds in [0, MaxJitter].
func randomJitter() time.Duration {
	// #nosec G404 -- jitter only desynchronizes monitors, it is not a secret
	return time.Duration(rand.IntN(int(MaxJitter/time.Second)+1)) * time.Second
}

func clampJitter(jitter time.Duration) time.Duration {
	if jitter < 0 {
		return 0
	}
	if jitter > MaxJitter {
		return MaxJitter
	}
	return jitter
}
