// Package jwt inspects aveslog access tokens on the client side.
//
// The server signs tokens with a secret the client never holds, so nothing
// here verifies a signature. The client only needs the registered claims,
// chiefly the expiry, to decide when to renew instead of waiting for a 401
// mid-request. Authorization remains entirely the server's call.
package jwt

import (
	"errors"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// ErrMalformed is returned when a token cannot be decoded at all.
var ErrMalformed = errors.New("malformed access token")

// Claims are the registered claims carried by an aveslog access token.
// Subject holds the account ID.
type Claims struct {
	jwtlib.RegisteredClaims
}

var parser = jwtlib.NewParser()

// Inspect decodes the claims of an access token without verifying its
// signature.
func Inspect(token string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, ErrMalformed
	}
	return claims, nil
}

// Expiry returns the token's expiry time. ok is false when the token
// carries no exp claim; such a token is treated as valid until the server
// says otherwise.
func Expiry(token string) (expiry time.Time, ok bool, err error) {
	claims, err := Inspect(token)
	if err != nil {
		return time.Time{}, false, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false, nil
	}
	return claims.ExpiresAt.Time, true, nil
}

// NeedsRefresh reports whether a token expiring at expiry should be renewed
// at instant now, given the configured leeway. A zero expiry means the
// token never self-expires.
func NeedsRefresh(expiry time.Time, leeway time.Duration, now time.Time) bool {
	if expiry.IsZero() {
		return false
	}
	return !now.Add(leeway).Before(expiry)
}
