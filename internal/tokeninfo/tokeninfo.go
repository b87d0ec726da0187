// Package tokeninfo summarizes the claims of issued access tokens for diagnostics.
package tokeninfo

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Summary holds the claims worth logging. It never includes the token itself.
type Summary struct {
	Subject     string
	Issuer      string
	Scope       string
	WLCGVersion string
	Expiry      time.Time
}

// Inspect decodes accessToken as a JWT without verifying its signature.
// Opaque tokens return false.
func Inspect(accessToken string) (Summary, bool) {
	if strings.Count(accessToken, ".") != 2 {
		return Summary{}, false
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return Summary{}, false
	}

	summary := Summary{
		Scope:       stringClaim(claims, "scope"),
		WLCGVersion: stringClaim(claims, "wlcg.ver"),
	}
	summary.Subject, _ = claims.GetSubject()
	summary.Issuer, _ = claims.GetIssuer()
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		summary.Expiry = exp.Time
	}

	return summary, true
}

// stringClaim flattens string and string-array claims into a space-separated string.
func stringClaim(claims jwt.MapClaims, key string) string {
	switch value := claims[key].(type) {
	case string:
		return value
	case []any:
		parts := make([]string, 0, len(value))
		for _, v := range value {
			parts = append(parts, fmt.Sprint(v))
		}
		return strings.Join(parts, " ")
	case nil:
		return ""
	default:
		return fmt.Sprint(value)
	}
}
