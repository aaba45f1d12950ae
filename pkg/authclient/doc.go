/*
Package authclient provides an authenticated HTTP client layer that manages a
short-lived bearer credential on behalf of callers.

# Overview

The package wraps any http.RoundTripper with the token lifecycle policy most
bearer-token APIs expect from a well-behaved client:

  - A cached access token is injected as "Authorization: Bearer <token>" on
    outbound requests that don't already carry an Authorization header.
  - A stale or missing token triggers exactly one provider fetch, no matter
    how many concurrent requests hit the miss (single-flight coalescing).
  - A 401 response triggers one forced refresh and one retry, never more.
  - A 403 response ends the session and notifies the caller; it is never
    retried.

The package is organized around two main types:

  - TokenCache: owns the cached token, its freshness window, and the
    single-flight fetch path.
  - Client: executes one logical request, injecting the token and applying
    the 401/403 policy against the configured transport.

# Collaborators

Two boundaries are consumed, both supplied by the caller:

  - SessionProvider issues and revokes credentials. A ready-made OAuth2
    binding lives in pkg/oauthx; any implementation works, including fakes
    in tests.
  - The transport is a plain http.RoundTripper (http.DefaultTransport when
    unset). The client never reaches around it, so mock transports slot in
    trivially.

# Usage

	provider := oauthx.NewProvider(oauthx.ProviderConfig{
		TokenURL:     "https://auth.example.com/v1/oauth2/token",
		RevokeURL:    "https://auth.example.com/v1/oauth2/revoke",
		ClientID:     "my-client",
		RefreshToken: refreshToken,
	})

	client, err := authclient.New(provider, authclient.Config{
		TTL:      5 * time.Minute,
		OnLogout: func() { app.TransitionToLoggedOut() },
	})
	if err != nil {
		log.Fatal(err)
	}

	resp, err := client.Do(req)

Code that wants a standard *http.Client can use the adapter:

	httpClient := client.HTTPClient()
	resp, err := httpClient.Get("https://api.example.com/v1/items")

# Retry policy

Exactly one retry, and only for 401. The retry replays the request's method
and body, so the caller is responsible for making retried requests idempotent
or tolerant of duplicate delivery. Setting Config.UseIdempotencyKeys adds an
Idempotency-Key header (a ULID) to mutating requests and reuses the same key
on the retry, letting servers that support it deduplicate. Requests whose body
cannot be replayed (Body set but GetBody nil) are never retried; the 401 is
returned as-is.

# Session events

Config exposes two optional callbacks. OnLogout fires when a 403 response
caused the session to be ended at the provider; the caller should transition
to logged-out state. OnTokenRefreshFailed fires when a forced refresh after a
401 failed; the session could not be renewed and the caller may choose to
force re-authentication. At most one of the two fires per logical request,
never both, never more than once.

# Thread safety

A Client and its TokenCache are safe for concurrent use. The cached token and
the in-flight fetch marker are the only shared mutable state; all mutation
goes through the single-flight path, so concurrent readers never observe a
half-written token and exactly one provider fetch is issued per staleness
episode. Cancelling one request aborts that request's send, retry and wait,
but never a shared in-flight fetch other requests are awaiting.
*/
package authclient
