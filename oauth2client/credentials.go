package oauth2client

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrConfiguration marks fatal, construction-time configuration problems.
// A monitor must not be started when this error is returned.
var ErrConfiguration = errors.New("oauth2client: configuration error")

// ClientCredentials holds the client identifier and secret used for the
// client-credentials grant. The secret is unexported and never formatted.
type ClientCredentials struct {
	ClientID string
	secret   string
}

// NewClientCredentials validates and wraps an in-memory client id and secret.
func NewClientCredentials(clientID, secret string) (ClientCredentials, error) {
	if clientID == "" {
		return ClientCredentials{}, fmt.Errorf("%w: client ID is required", ErrConfiguration)
	}
	if strings.TrimSpace(secret) == "" {
		return ClientCredentials{}, fmt.Errorf("%w: client secret is empty", ErrConfiguration)
	}

	return ClientCredentials{ClientID: clientID, secret: strings.TrimSpace(secret)}, nil
}

// LoadClientCredentials reads the client secret from secretFile.
//
// Parameters:
//   - clientID: OAuth2 client identifier (required)
//   - secretFile: Path to a file holding the client secret (required)
//
// The file contents are trimmed. A missing file and a file containing only
// whitespace both fail with ErrConfiguration.
func LoadClientCredentials(clientID, secretFile string) (ClientCredentials, error) {
	if clientID == "" {
		return ClientCredentials{}, fmt.Errorf("%w: client ID is required", ErrConfiguration)
	}
	if secretFile == "" {
		return ClientCredentials{}, fmt.Errorf("%w: client secret file is required", ErrConfiguration)
	}

	raw, err := os.ReadFile(secretFile) // #nosec G304 -- path comes from operator configuration
	if err != nil {
		return ClientCredentials{}, fmt.Errorf("%w: read client secret file %s: %w", ErrConfiguration, secretFile, err)
	}

	secret := strings.TrimSpace(string(raw))
	if secret == "" {
		return ClientCredentials{}, fmt.Errorf("%w: client secret file %s is empty", ErrConfiguration, secretFile)
	}

	return ClientCredentials{ClientID: clientID, secret: secret}, nil
}

// String implements fmt.Stringer without revealing the secret.
func (c ClientCredentials) String() string {
	return fmt.Sprintf("ClientCredentials{ClientID: %q, Secret: [REDACTED]}", c.ClientID)
}

// GoString keeps %#v from printing the secret field.
func (c ClientCredentials) GoString() string {
	return c.String()
}
