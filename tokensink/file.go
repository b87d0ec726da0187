package tokensink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/sirupsen/logrus"
)

// TokenFileSuffix is appended to the token name to form the file name.
const TokenFileSuffix = ".use"

// DefaultLifetime applies when the provider did not report expires_in.
const DefaultLifetime = 20 * time.Minute

// TokenFile is the on-disk JSON document.
type TokenFile struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	ExpiresAt   int64  `json:"expires_at"`
}

// FileSink writes access tokens to <Dir>/<user>/<tokenName>.use.
type FileSink struct {
	dir             string
	defaultLifetime time.Duration
	clock           clock.Clock
	logger          logrus.FieldLogger
}

// Option is a functional option for configuring FileSink.
type Option func(*FileSink)

// WithDefaultLifetime sets the lifetime recorded when the provider reports none.
func WithDefaultLifetime(lifetime time.Duration) Option {
	return func(s *FileSink) {
		if lifetime > 0 {
			s.defaultLifetime = lifetime
		}
	}
}

// WithClock sets the time source for expires_at.
func WithClock(c clock.Clock) Option {
	return func(s *FileSink) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogger sets the logger. If not set, logrus.StandardLogger() is used.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *FileSink) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewFileSink creates a sink rooted at dir. The directory must exist.
func NewFileSink(dir string, opts ...Option) (*FileSink, error) {
	if dir == "" {
		return nil, errors.New("tokensink: directory is required")
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("tokensink: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("tokensink: %s is not a directory", dir)
	}

	s := &FileSink{
		dir:             dir,
		defaultLifetime: DefaultLifetime,
		clock:           clock.NewClock(),
		logger:          logrus.StandardLogger(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Path returns the file a token for user and tokenName is written to.
func (s *FileSink) Path(user, tokenName string) string {
	return filepath.Join(s.dir, user, tokenName+TokenFileSuffix)
}

// Write stores accessToken atomically. A zero lifetime means the provider did
// not report one and the default lifetime is recorded instead.
func (s *FileSink) Write(_ context.Context, user, tokenName string, lifetime time.Duration, accessToken string) bool {
	log := s.logger.WithFields(logrus.Fields{"user": user, "token_name": tokenName})

	if err := validName(user); err != nil {
		log.WithError(err).Error("tokensink: refusing to write token")
		return false
	}
	if err := validName(tokenName); err != nil {
		log.WithError(err).Error("tokensink: refusing to write token")
		return false
	}

	if lifetime <= 0 {
		lifetime = s.defaultLifetime
	}

	doc, err := json.Marshal(TokenFile{
		AccessToken: accessToken,
		ExpiresIn:   int64(lifetime / time.Second),
		ExpiresAt:   s.clock.Now().Add(lifetime).Unix(),
	})
	if err != nil {
		log.WithError(err).Error("tokensink: failed to encode token")
		return false
	}

	path := s.Path(user, tokenName)
	if err := writeAtomic(path, doc); err != nil {
		log.WithError(err).Error("tokensink: failed to write token")
		return false
	}

	log.WithField("path", path).Info("tokensink: wrote access token")
	return true
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

func validName(name string) error {
	switch {
	case name == "":
		return errors.New("tokensink: empty name")
	case name == "." || name == "..":
		return fmt.Errorf("tokensink: invalid name %q", name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("tokensink: name %q contains a path separator", name)
	}
	return nil
}
