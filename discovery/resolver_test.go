package discovery

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"code.cloudfoundry.org/clock/fakeclock"
	"github.com/AmmannChristian/go-credmon/internal/testutil"
	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"
)

type resolverFixture struct {
	idp      *testutil.MockIdentityProvider
	clock    *fakeclock.FakeClock
	hook     *logrustest.Hook
	resolver *Resolver
	outcomes []Outcome
}

func newResolverFixture(t *testing.T, opts ...Option) *resolverFixture {
	t.Helper()

	logger, hook := logrustest.NewNullLogger()
	f := &resolverFixture{
		idp:   testutil.NewMockIdentityProvider(t),
		clock: fakeclock.NewFakeClock(time.Unix(1_700_000_000, 0)),
		hook:  hook,
	}

	base := []Option{
		WithHTTPClient(f.idp.Client()),
		WithClock(f.clock),
		WithLogger(logger),
		WithJitter(func() time.Duration { return 30 * time.Second }),
		WithObserver(func(o Outcome) { f.outcomes = append(f.outcomes, o) }),
	}

	resolver, err := NewResolver(f.idp.Issuer, time.Hour, append(base, opts...)...)
	if err != nil {
		t.Fatalf("NewResolver failed: %v", err)
	}
	f.resolver = resolver

	return f
}

func (f *resolverFixture) mustResolve(t *testing.T) string {
	t.Helper()

	endpoint, err := f.resolver.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	return endpoint
}

func TestNewResolver_TTL(t *testing.T) {
	tests := []struct {
		name     string
		lifetime time.Duration
		jitter   time.Duration
		want     time.Duration
	}{
		{name: "configured lifetime", lifetime: 10 * time.Minute, jitter: 15 * time.Second, want: 10*time.Minute + 15*time.Second},
		{name: "default lifetime", lifetime: 0, jitter: 0, want: DefaultEndpointLifetime},
		{name: "jitter clamped high", lifetime: time.Minute, jitter: 5 * time.Minute, want: 2 * time.Minute},
		{name: "jitter clamped low", lifetime: time.Minute, jitter: -time.Second, want: time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jitter := tt.jitter
			r, err := NewResolver("https://idp.example.com", tt.lifetime, WithJitter(func() time.Duration { return jitter }))
			if err != nil {
				t.Fatalf("NewResolver failed: %v", err)
			}
			if r.TTL() != tt.want {
				t.Errorf("expected TTL %v, got %v", tt.want, r.TTL())
			}
		})
	}
}

func TestNewResolver_RandomJitterWithinBounds(t *testing.T) {
	for i := 0; i < 100; i++ {
		r, err := NewResolver("https://idp.example.com", time.Hour)
		if err != nil {
			t.Fatalf("NewResolver failed: %v", err)
		}
		extra := r.TTL() - time.Hour
		if extra < 0 || extra > MaxJitter {
			t.Fatalf("jitter out of range: %v", extra)
		}
		if extra%time.Second != 0 {
			t.Fatalf("jitter should be whole seconds, got %v", extra)
		}
	}
}

func TestNewResolver_RequiresIssuerOrStaticURL(t *testing.T) {
	if _, err := NewResolver("", time.Hour); err == nil {
		t.Error("expected error without issuer or static URL")
	}
	if _, err := NewResolver("", time.Hour, WithStaticURL("https://idp.example.com/token")); err != nil {
		t.Errorf("static URL alone should be enough: %v", err)
	}
}

func TestResolver_DiscoversAndCaches(t *testing.T) {
	f := newResolverFixture(t)

	if f.resolver.State() != Unset {
		t.Fatalf("expected Unset state, got %v", f.resolver.State())
	}

	endpoint := f.mustResolve(t)
	if endpoint != f.idp.TokenURL {
		t.Errorf("expected %s, got %s", f.idp.TokenURL, endpoint)
	}
	if f.resolver.State() != Fresh {
		t.Errorf("expected Fresh state, got %v", f.resolver.State())
	}

	// Calls within the TTL never touch the network.
	for _, step := range []time.Duration{time.Minute, 30 * time.Minute, 29*time.Minute + 29*time.Second} {
		f.clock.Increment(step)
		if got := f.mustResolve(t); got != f.idp.TokenURL {
			t.Errorf("expected cached endpoint, got %s", got)
		}
	}

	if calls := f.idp.DiscoveryCalls(); calls != 1 {
		t.Errorf("expected 1 discovery call, got %d", calls)
	}

	want := []Outcome{OutcomeDiscovered, OutcomeCached, OutcomeCached, OutcomeCached}
	if len(f.outcomes) != len(want) {
		t.Fatalf("expected outcomes %v, got %v", want, f.outcomes)
	}
	for i := range want {
		if f.outcomes[i] != want[i] {
			t.Errorf("outcome %d: expected %s, got %s", i, want[i], f.outcomes[i])
		}
	}
}

func TestResolver_RediscoversAfterTTL(t *testing.T) {
	f := newResolverFixture(t)
	f.mustResolve(t)

	f.clock.Increment(f.resolver.TTL())
	if f.resolver.State() != Stale {
		t.Fatalf("expected Stale at resolvedAt+ttl, got %v", f.resolver.State())
	}

	f.idp.SetDiscovery(testutil.StaticJSONResponse(testutil.DiscoveryDocument(f.idp.Issuer, "https://idp2.example.com/token")))

	if got := f.mustResolve(t); got != "https://idp2.example.com/token" {
		t.Errorf("expected new endpoint, got %s", got)
	}
	if calls := f.idp.DiscoveryCalls(); calls != 2 {
		t.Errorf("expected 2 discovery calls, got %d", calls)
	}
	if f.resolver.State() != Fresh {
		t.Errorf("expected Fresh after rediscovery, got %v", f.resolver.State())
	}
}

func TestResolver_StaleFallback(t *testing.T) {
	tests := []struct {
		name    string
		handler testutil.RoundTripFunc
	}{
		{name: "non-200 status", handler: testutil.JSONResponse(http.StatusServiceUnavailable, `{"error": "down"}`)},
		{name: "non-JSON body", handler: testutil.Response(http.StatusOK, "text/html", "<html>maintenance</html>")},
		{name: "missing token_endpoint", handler: testutil.StaticJSONResponse(`{"issuer": "https://mock-idp.example.com"}`)},
		{name: "non-string token_endpoint", handler: testutil.StaticJSONResponse(`{"issuer": "https://mock-idp.example.com", "token_endpoint": 42}`)},
		{name: "transport failure", handler: func(*http.Request) (*http.Response, error) { return nil, errors.New("connection reset") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newResolverFixture(t)
			cached := f.mustResolve(t)

			f.clock.Increment(f.resolver.TTL() + time.Second)
			f.idp.SetDiscovery(tt.handler)

			endpoint, err := f.resolver.Resolve(context.Background())
			if err != nil {
				t.Fatalf("expected stale fallback, got error: %v", err)
			}
			if endpoint != cached {
				t.Errorf("expected stale endpoint %s, got %s", cached, endpoint)
			}

			var loggedFailure bool
			for _, entry := range f.hook.AllEntries() {
				if entry.Level == logrus.ErrorLevel && strings.Contains(entry.Message, "discovery failed") {
					loggedFailure = true
				}
			}
			if !loggedFailure {
				t.Error("expected the discovery failure to be logged")
			}

			if last := f.outcomes[len(f.outcomes)-1]; last != OutcomeStaleFallback {
				t.Errorf("expected stale_fallback outcome, got %s", last)
			}
			if f.resolver.State() != Stale {
				t.Errorf("failed discovery must not refresh the cache, state %v", f.resolver.State())
			}
		})
	}
}

func TestResolver_ColdFallbackFails(t *testing.T) {
	tests := []struct {
		name    string
		handler testutil.RoundTripFunc
	}{
		{name: "not found", handler: testutil.JSONResponse(http.StatusNotFound, `{}`)},
		{name: "non-JSON body", handler: testutil.Response(http.StatusOK, "text/plain", "hello")},
		{name: "missing token_endpoint", handler: testutil.StaticJSONResponse(`{"issuer": "https://mock-idp.example.com"}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newResolverFixture(t)
			f.idp.SetDiscovery(tt.handler)

			endpoint, err := f.resolver.Resolve(context.Background())
			if !errors.Is(err, ErrDiscovery) {
				t.Fatalf("expected ErrDiscovery, got endpoint=%q err=%v", endpoint, err)
			}
			if endpoint != "" {
				t.Errorf("expected empty endpoint, got %s", endpoint)
			}
			if last := f.outcomes[len(f.outcomes)-1]; last != OutcomeFailed {
				t.Errorf("expected failed outcome, got %s", last)
			}
			if f.resolver.State() != Unset {
				t.Errorf("expected Unset state, got %v", f.resolver.State())
			}
		})
	}
}

func TestResolver_ColdFailureThenRecovery(t *testing.T) {
	f := newResolverFixture(t)
	f.idp.SetDiscovery(testutil.JSONResponse(http.StatusBadGateway, `{}`))

	if _, err := f.resolver.Resolve(context.Background()); !errors.Is(err, ErrDiscovery) {
		t.Fatalf("expected ErrDiscovery, got %v", err)
	}

	f.idp.SetDiscovery(testutil.StaticJSONResponse(testutil.DiscoveryDocument(f.idp.Issuer, f.idp.TokenURL)))
	if got := f.mustResolve(t); got != f.idp.TokenURL {
		t.Errorf("expected recovery to %s, got %s", f.idp.TokenURL, got)
	}
}

func TestResolver_StaticOverridePrecedence(t *testing.T) {
	const static = "https://static.example.com/oauth/token"
	f := newResolverFixture(t, WithStaticURL(static))

	for i := 0; i < 3; i++ {
		if got := f.mustResolve(t); got != static {
			t.Errorf("expected static URL, got %s", got)
		}
		f.clock.Increment(2 * f.resolver.TTL())
	}

	if calls := f.idp.DiscoveryCalls(); calls != 0 {
		t.Errorf("discovery must never run with a static URL, got %d calls", calls)
	}
	for _, outcome := range f.outcomes {
		if outcome != OutcomeStatic {
			t.Errorf("expected only static outcomes, got %s", outcome)
		}
	}
}

func TestResolver_StaticOverrideIgnoresCache(t *testing.T) {
	f := newResolverFixture(t)
	f.mustResolve(t)

	// A populated cache does not shadow a static URL.
	f.resolver.staticURL = "https://static.example.com/token"
	if got := f.mustResolve(t); got != "https://static.example.com/token" {
		t.Errorf("expected static URL over cache, got %s", got)
	}
	if calls := f.idp.DiscoveryCalls(); calls != 1 {
		t.Errorf("expected no extra discovery, got %d calls", calls)
	}
}

func TestCacheState_String(t *testing.T) {
	tests := map[CacheState]string{
		Unset:          "unset",
		Fresh:          "fresh",
		Stale:          "stale",
		CacheState(99): "unknown",
	}
	for state, want := range tests {
		if got := state.String(); got != want {
			t.Errorf("CacheState(%d).String() = %q, want %q", int(state), got, want)
		}
	}
}
