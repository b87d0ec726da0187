// Package credmoncmd holds the client-credmon command line.
package credmoncmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AmmannChristian/go-credmon/credmon"
	"github.com/AmmannChristian/go-credmon/grpcserver"
	"github.com/AmmannChristian/go-credmon/httpserver"
	"github.com/AmmannChristian/go-credmon/internal/health"
	"github.com/AmmannChristian/go-credmon/internal/metrics"
	"github.com/AmmannChristian/go-credmon/tokensink"
	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Command is the root of the command line.
type Command struct {
	Run   RunCommand   `command:"run" description:"Keep the access tokens of every configured provider fresh."`
	Check CheckCommand `command:"check" description:"Query the health of a running monitor."`
}

// LogOptions configure the process logger.
type LogOptions struct {
	Level string `long:"level" default:"info" choice:"debug" choice:"info" choice:"warn" choice:"error" description:"Minimum log level."`
	JSON  bool   `long:"json" description:"Log as JSON."`
}

// Logger builds a logger writing to stderr.
func (o LogOptions) Logger() (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	level, err := logrus.ParseLevel(o.Level)
	if err != nil {
		return nil, fmt.Errorf("credmoncmd: %w", err)
	}
	logger.SetLevel(level)

	if o.JSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	return logger, nil
}

// RunCommand runs one monitor per provider, plus the health and metrics servers.
type RunCommand struct {
	Providers []string      `long:"provider" short:"p" env:"CLIENT_CREDMON_PROVIDERS" env-delim:"," required:"true" description:"Provider to refresh tokens for; configured from CLIENT_CREDMON_<PROVIDER>_* variables. Repeatable."`
	CredDir   string        `long:"cred-dir" env:"SEC_CREDENTIAL_DIRECTORY_OAUTH" required:"true" description:"Directory access tokens are written to."`
	Interval  time.Duration `long:"interval" default:"1m" description:"How often every identity is refreshed."`
	Once      bool          `long:"once" description:"Refresh every identity once and exit; fails if any refresh failed."`

	Health struct {
		Addr    string `long:"addr" default:"127.0.0.1:8081" description:"gRPC health listen address. Empty disables it."`
		TLSCert string `long:"tls-cert" description:"Server certificate for the health endpoint."`
		TLSKey  string `long:"tls-key" description:"Server key for the health endpoint."`
	} `group:"Health" namespace:"health"`

	Metrics struct {
		Addr string `long:"addr" default:"127.0.0.1:9090" description:"Prometheus metrics listen address. Empty disables it."`
	} `group:"Metrics" namespace:"metrics"`

	Log LogOptions `group:"Logging" namespace:"log"`

	// engineOpts are appended to every engine's options.
	engineOpts []credmon.Option
}

// Execute implements flags.Commander.
func (cmd *RunCommand) Execute(args []string) error {
	logger, err := cmd.Log.Logger()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return cmd.RunWith(ctx, logger, nil)
}

// RunWith runs the command with an explicit logger and environment. A nil
// environ reads the process environment.
func (cmd *RunCommand) RunWith(ctx context.Context, logger logrus.FieldLogger, environ map[string]string) error {
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	reporter := health.NewReporter()
	defer reporter.Shutdown()

	monitors, err := cmd.monitors(logger, m, reporter, environ)
	if err != nil {
		return err
	}

	if cmd.Once {
		var failed []string
		for _, monitor := range monitors {
			if !monitor.Cycle(ctx) {
				failed = append(failed, monitor.Provider)
			}
		}
		if len(failed) > 0 {
			return fmt.Errorf("credmoncmd: refresh failed for %v", failed)
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)

	for _, monitor := range monitors {
		g.Go(func() error {
			return monitor.Run(gctx)
		})
	}

	if cmd.Health.Addr != "" {
		builder := grpcserver.NewBuilder().
			WithAddress(cmd.Health.Addr).
			WithService(reporter).
			WithLogger(logger)
		if cmd.Health.TLSCert != "" || cmd.Health.TLSKey != "" {
			builder = builder.WithTLS(&grpcserver.TLSConfig{CertFile: cmd.Health.TLSCert, KeyFile: cmd.Health.TLSKey})
		}
		server, err := builder.Build()
		if err != nil {
			return err
		}
		g.Go(func() error {
			return server.ListenAndServe(gctx)
		})
	}

	if cmd.Metrics.Addr != "" {
		server, err := httpserver.NewBuilder().
			WithAddress(cmd.Metrics.Addr).
			WithHandler("/metrics", metrics.Handler(registry)).
			WithLogger(logger).
			Build()
		if err != nil {
			return err
		}
		g.Go(func() error {
			return server.ListenAndServe(gctx)
		})
	}

	logger.WithField("providers", cmd.Providers).Info("credmoncmd: started")

	return g.Wait()
}

// monitors loads every provider. All configuration errors are reported together.
func (cmd *RunCommand) monitors(logger logrus.FieldLogger, m *metrics.Metrics, reporter *health.Reporter, environ map[string]string) ([]credmon.Monitor, error) {
	if len(cmd.Providers) == 0 {
		return nil, errors.New("credmoncmd: at least one provider is required")
	}

	var result *multierror.Error
	monitors := make([]credmon.Monitor, 0, len(cmd.Providers))

	for _, provider := range cmd.Providers {
		monitor, err := cmd.monitor(provider, logger, m, reporter, environ)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		monitors = append(monitors, monitor)
	}

	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	return monitors, nil
}

func (cmd *RunCommand) monitor(provider string, logger logrus.FieldLogger, m *metrics.Metrics, reporter *health.Reporter, environ map[string]string) (credmon.Monitor, error) {
	cfg, err := credmon.LoadProviderConfig(provider, environ)
	if err != nil {
		return credmon.Monitor{}, err
	}

	providerLogger := logger.WithField("provider", cfg.Name)

	sink, err := tokensink.NewFileSink(cmd.CredDir,
		tokensink.WithDefaultLifetime(cfg.DefaultTokenLifetime()),
		tokensink.WithLogger(providerLogger),
	)
	if err != nil {
		return credmon.Monitor{}, err
	}

	opts := append([]credmon.Option{
		credmon.WithMetrics(m),
		credmon.WithLogger(logger),
	}, cmd.engineOpts...)

	engine, err := credmon.NewEngine(cfg, sink, opts...)
	if err != nil {
		return credmon.Monitor{}, err
	}

	identities := cfg.Identities()
	if len(identities) == 0 {
		providerLogger.Warn("credmoncmd: no users configured, nothing to refresh")
	}

	return credmon.Monitor{
		Provider:   cfg.Name,
		Refresher:  engine,
		Identities: identities,
		Interval:   cmd.Interval,
		Health:     reporter,
		Logger:     logger,
	}, nil
}
