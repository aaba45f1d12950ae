package oauthx

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenExpiry derives an absolute expiry time for the access token, minus
// the configured buffer. Preference order:
//
//  1. expires_in from the token response (authoritative per RFC 6749)
//  2. the exp claim of the access token, when it happens to be a JWT
//  3. zero, meaning the cache falls back to its TTL alone
//
// The exp claim is read without signature verification: the token came over
// TLS from the provider we are about to trust it from, and the expiry is
// only a refresh hint, never an authorization decision.
func tokenExpiry(tokenResp *TokenResponse, now time.Time, buffer time.Duration) time.Time {
	if tokenResp.ExpiresIn > 0 {
		return now.Add(time.Duration(tokenResp.ExpiresIn) * time.Second).Add(-buffer)
	}

	if exp, ok := jwtExpiry(tokenResp.AccessToken); ok {
		return exp.Add(-buffer)
	}

	return time.Time{}
}

// jwtExpiry extracts the exp claim from a JWT access token. Opaque tokens
// fail to parse and report ok=false.
func jwtExpiry(accessToken string) (time.Time, bool) {
	parser := jwt.NewParser()

	var claims jwt.RegisteredClaims
	if _, _, err := parser.ParseUnverified(accessToken, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
