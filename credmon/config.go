package credmon

import (
	"fmt"
	"strings"
	"time"

	"github.com/AmmannChristian/go-credmon/oauth2client"
	"github.com/caarlos0/env/v11"
	"github.com/hashicorp/go-multierror"
)

// EnvPrefix returns the environment prefix of a provider's configuration,
// e.g. CLIENT_CREDMON_MYIDP_.
func EnvPrefix(provider string) string {
	return "CLIENT_CREDMON_" + strings.ToUpper(provider) + "_"
}

// ProviderConfig is the configuration of one identity provider. Every key is
// read with the provider's EnvPrefix.
type ProviderConfig struct {
	// Name is the provider name; it is not read from the environment.
	Name string

	// TokenEndpointLifetime is how long, in seconds, a discovered token endpoint is cached.
	TokenEndpointLifetime int `env:"TOKEN_ENDPOINT_LIFETIME" envDefault:"3600"`
	ClientID              string `env:"CLIENT_ID"`
	ClientSecretFile      string `env:"CLIENT_SECRET_FILE"`
	// TokenURL disables OIDC discovery when set.
	TokenURL string `env:"TOKEN_URL"`
	Issuer   string `env:"ISSUER"`

	Scopes     []string `env:"TOKEN_SCOPES" envSeparator:","`
	Audience   []string `env:"TOKEN_AUDIENCE" envSeparator:","`
	Profile    string   `env:"TOKEN_PROFILE"`
	UseSubject bool     `env:"TOKEN_USE_SUBJECT" envDefault:"true"`
	// TokenLifetime, in seconds, is assumed when the provider omits expires_in.
	TokenLifetime int `env:"TOKEN_LIFETIME" envDefault:"1200"`

	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT" envDefault:"30s"`
	CAFile      string        `env:"CA_FILE"`

	// Users lists identities as "user" or "user:token_name".
	Users []string `env:"USERS" envSeparator:","`
}

// LoadProviderConfig reads and validates a provider's configuration.
// A nil environ reads the process environment.
func LoadProviderConfig(provider string, environ map[string]string) (ProviderConfig, error) {
	cfg := ProviderConfig{Name: provider}

	opts := env.Options{Prefix: EnvPrefix(provider)}
	if environ != nil {
		opts.Environment = environ
	}

	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return ProviderConfig{}, fmt.Errorf("%w: credmon: parse %s configuration: %w", oauth2client.ErrConfiguration, provider, err)
	}

	if err := cfg.Validate(); err != nil {
		return ProviderConfig{}, err
	}

	return cfg, nil
}

// Validate reports every missing or invalid key at once. Each reported
// error wraps oauth2client.ErrConfiguration.
func (c ProviderConfig) Validate() error {
	var result *multierror.Error
	prefix := EnvPrefix(c.Name)

	fail := func(format string, args ...any) {
		result = multierror.Append(result, fmt.Errorf("%w: %s", oauth2client.ErrConfiguration, fmt.Sprintf(format, args...)))
	}

	if c.Name == "" {
		fail("provider name is required")
	}
	if c.ClientID == "" {
		fail("%sCLIENT_ID must be set to use the client credentials credmon", prefix)
	}
	if c.ClientSecretFile == "" {
		fail("%sCLIENT_SECRET_FILE must be set to use the client credentials credmon", prefix)
	}
	if c.TokenURL == "" && c.Issuer == "" {
		fail("%sISSUER must be set when %sTOKEN_URL is not", prefix, prefix)
	}
	if c.TokenEndpointLifetime < 0 {
		fail("%sTOKEN_ENDPOINT_LIFETIME must not be negative", prefix)
	}
	if c.TokenLifetime < 0 {
		fail("%sTOKEN_LIFETIME must not be negative", prefix)
	}
	for _, user := range c.Users {
		if _, err := ParseIdentity(user, c.DefaultTokenName()); err != nil {
			fail("%sUSERS: %v", prefix, err)
		}
	}

	return result.ErrorOrNil()
}

// EndpointLifetime returns TokenEndpointLifetime as a duration.
func (c ProviderConfig) EndpointLifetime() time.Duration {
	return time.Duration(c.TokenEndpointLifetime) * time.Second
}

// DefaultTokenLifetime returns TokenLifetime as a duration.
func (c ProviderConfig) DefaultTokenLifetime() time.Duration {
	return time.Duration(c.TokenLifetime) * time.Second
}

// DefaultTokenName is the lowercased provider name.
func (c ProviderConfig) DefaultTokenName() string {
	return strings.ToLower(c.Name)
}

// Identities parses Users. Validate has already rejected malformed entries.
func (c ProviderConfig) Identities() []Identity {
	identities := make([]Identity, 0, len(c.Users))
	for _, user := range c.Users {
		if id, err := ParseIdentity(user, c.DefaultTokenName()); err == nil {
			identities = append(identities, id)
		}
	}
	return identities
}

// Params builds the token request parameters for user.
func (c ProviderConfig) Params(user string) oauth2client.TokenRequestParams {
	params := oauth2client.TokenRequestParams{
		Scopes:   c.Scopes,
		Audience: c.Audience,
		Profile:  c.Profile,
	}
	if c.UseSubject {
		params.Subject = user
	}
	return params
}
