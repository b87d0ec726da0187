package credmon

import (
	"fmt"
	"strings"
)

// Identity is a user whose token the monitor keeps fresh, and the name the
// token is stored under.
type Identity struct {
	User      string
	TokenName string
}

func (i Identity) String() string {
	return i.User + ":" + i.TokenName
}

// ParseIdentity parses "user" or "user:token_name".
func ParseIdentity(s, defaultTokenName string) (Identity, error) {
	user, tokenName, found := strings.Cut(strings.TrimSpace(s), ":")
	if !found {
		tokenName = defaultTokenName
	}

	user = strings.TrimSpace(user)
	tokenName = strings.TrimSpace(tokenName)

	if user == "" {
		return Identity{}, fmt.Errorf("credmon: identity %q has no user", s)
	}
	if tokenName == "" {
		return Identity{}, fmt.Errorf("credmon: identity %q has no token name", s)
	}

	return Identity{User: user, TokenName: tokenName}, nil
}
