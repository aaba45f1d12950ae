package authclient

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// TokenCache owns a single cached token plus its fetch timestamp. It answers
// "give me a usable token" requests while minimizing calls to the identity
// provider: a fresh cached token is served with no I/O, and concurrent misses
// coalesce into one upstream fetch.
//
// The cache never retries a failed fetch on its own; retry policy lives in
// the Client.
type TokenCache struct {
	provider SessionProvider
	ttl      time.Duration

	// now is swapped out by tests to drive TTL expiry deterministically.
	now func() time.Time

	mu    sync.Mutex
	token Token

	flight singleflight.Group
}

// NewTokenCache creates a cache over the given provider. A non-positive ttl
// selects DefaultTTL.
func NewTokenCache(provider SessionProvider, ttl time.Duration) *TokenCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &TokenCache{
		provider: provider,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Get returns a usable token.
//
// When forceRefresh is false and the cached token is fresh it is returned
// immediately with no I/O. Otherwise the caller joins the in-flight fetch if
// one exists, or starts one: all concurrent callers observe the same
// resulting token or the same failure, and the provider sees exactly one
// FetchToken call per staleness or force-refresh episode.
//
// On fetch failure the cached token is cleared (a known-bad token is never
// served again) and the failure is returned as a *TokenFetchError.
//
// Cancelling ctx aborts this caller's wait but never the shared fetch other
// callers may be awaiting.
func (c *TokenCache) Get(ctx context.Context, forceRefresh bool) (Token, error) {
	if !forceRefresh {
		if token, ok := c.freshToken(); ok {
			return token, nil
		}
	}

	ch := c.flight.DoChan("token", func() (any, error) {
		// Another caller may have completed a fetch between our freshness
		// check and joining the flight.
		if !forceRefresh {
			if token, ok := c.freshToken(); ok {
				return token, nil
			}
		}

		// Detached from the triggering caller: cancelling one waiting
		// request must not abort a fetch other requests are awaiting.
		token, err := c.provider.FetchToken(context.WithoutCancel(ctx), forceRefresh)
		if err != nil {
			c.clear()
			return Token{}, &TokenFetchError{Forced: forceRefresh, Err: err}
		}

		if token.IssuedAt.IsZero() {
			token.IssuedAt = c.now()
		}
		c.set(token)
		return token, nil
	})

	select {
	case result := <-ch:
		if result.Err != nil {
			return Token{}, result.Err
		}
		return result.Val.(Token), nil
	case <-ctx.Done():
		return Token{}, ctx.Err()
	}
}

// Current returns the cached token without performing any I/O or freshness
// checks. Mainly useful for diagnostics; prefer Get for outbound requests.
func (c *TokenCache) Current() (Token, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token, !c.token.IsZero()
}

// freshToken returns the cached token iff it is fresh: younger than the TTL
// and, when the provider reported an expiry, not past it.
func (c *TokenCache) freshToken() (Token, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token.IsZero() {
		return Token{}, false
	}

	now := c.now()
	if now.Sub(c.token.IssuedAt) >= c.ttl {
		return Token{}, false
	}
	if !c.token.ExpiresAt.IsZero() && !now.Before(c.token.ExpiresAt) {
		return Token{}, false
	}

	return c.token, true
}

func (c *TokenCache) set(token Token) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

func (c *TokenCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = Token{}
}
