package credmon

import (
	"context"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/sirupsen/logrus"
)

// DefaultInterval is how often a Monitor refreshes its identities.
const DefaultInterval = time.Minute

// Refresher acquires and stores one token.
type Refresher interface {
	Refresh(ctx context.Context, user, tokenName string) (bool, error)
}

// HealthReporter receives the outcome of each refresh cycle.
type HealthReporter interface {
	SetProvider(provider string, ok bool)
}

// Monitor keeps the tokens of one provider's identities fresh.
type Monitor struct {
	Provider   string
	Refresher  Refresher
	Identities []Identity
	Interval   time.Duration
	Clock      clock.Clock
	Health     HealthReporter
	Logger     logrus.FieldLogger
}

// Run refreshes every identity immediately and then once per Interval until
// ctx is cancelled.
func (m Monitor) Run(ctx context.Context) error {
	interval := m.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	c := m.Clock
	if c == nil {
		c = clock.NewClock()
	}

	ticker := c.NewTicker(interval)
	defer ticker.Stop()

	m.Cycle(ctx)

	for {
		select {
		case <-ticker.C():
			m.Cycle(ctx)
		case <-ctx.Done():
			return nil
		}
	}
}

// Cycle refreshes each identity once, in order, and reports whether all of
// them succeeded.
func (m Monitor) Cycle(ctx context.Context) bool {
	logger := m.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	logger = logger.WithField("provider", m.Provider)

	ok := true
	for _, id := range m.Identities {
		if ctx.Err() != nil {
			ok = false
			break
		}

		stored, err := m.Refresher.Refresh(ctx, id.User, id.TokenName)
		if err != nil {
			logger.WithError(err).WithField("identity", id.String()).Error("credmon: refresh failed")
		}
		ok = ok && stored
	}

	if m.Health != nil {
		m.Health.SetProvider(m.Provider, ok)
	}
	logger.WithField("ok", ok).Debug("credmon: refresh cycle finished")

	return ok
}
