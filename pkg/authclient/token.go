package authclient

import (
	"context"
	"time"
)

// Token is an opaque bearer credential together with the metadata the cache
// needs to judge freshness. Tokens are immutable once created; a refresh
// produces a new Token, it never mutates the old one.
type Token struct {
	// Value is the credential injected as "Authorization: Bearer <value>".
	Value string

	// IssuedAt is when the token was obtained. The cache stamps this itself
	// when storing a fetched token, providers don't need to set it.
	IssuedAt time.Time

	// ExpiresAt is the provider-reported expiry, when known (e.g. derived
	// from expires_in or the JWT exp claim). Zero means unknown; freshness
	// then falls back to the cache TTL alone.
	ExpiresAt time.Time
}

// IsZero reports whether the token carries no credential.
func (t Token) IsZero() bool { return t.Value == "" }

// SessionProvider is the identity-provider binding. It issues fresh tokens
// and revokes the session. Implementations must be safe for concurrent use;
// the client serializes nothing beyond the single-flight coalescing the
// TokenCache performs itself.
//
// pkg/oauthx ships an OAuth2 refresh-grant implementation. Tests typically
// use a small fake.
type SessionProvider interface {
	// FetchToken returns a usable token. forceRefresh is true when a cached
	// token was rejected by the server (401) and the provider should not
	// serve anything it may itself have cached.
	FetchToken(ctx context.Context, forceRefresh bool) (Token, error)

	// EndSession revokes the session at the provider. Called when the server
	// answers 403; an error means the session may still be valid server-side.
	EndSession(ctx context.Context) error
}
