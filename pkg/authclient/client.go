package authclient

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/aussiebroadwan/authkit/pkg/httpx"
	"github.com/aussiebroadwan/authkit/pkg/idx"
	"github.com/aussiebroadwan/authkit/pkg/slogx"
)

// Client executes logical requests against the configured transport,
// injecting the bearer token and applying the 401/403 retry and logout
// policy. See the package documentation for the full state machine.
//
// A Client is safe for concurrent use.
type Client struct {
	provider  SessionProvider
	cache     *TokenCache
	transport http.RoundTripper
	cfg       Config
	log       *slog.Logger
}

// New creates a Client over the given provider. See Config for the knobs;
// the zero Config is usable.
func New(provider SessionProvider, cfg Config) (*Client, error) {
	if provider == nil {
		return nil, ErrProviderRequired
	}

	cfg = cfg.withDefaults()

	return &Client{
		provider:  provider,
		cache:     NewTokenCache(provider, cfg.TTL),
		transport: cfg.Transport,
		cfg:       cfg,
		log:       cfg.Logger,
	}, nil
}

// Cache returns the client's token cache. Useful for pre-warming a token
// before the first request or inspecting the cached credential.
func (c *Client) Cache() *TokenCache {
	return c.cache
}

// HTTPClient returns a standard *http.Client whose transport routes every
// request through this Client. Use it with code that expects an
// *http.Client rather than a Do method.
func (c *Client) HTTPClient() *http.Client {
	return &http.Client{Transport: roundTripper{client: c}}
}

// Do executes one logical request: obtain a token, inject it, send, and
// reconcile the response status with the session state.
//
// Behavior by status:
//
//   - 401: one forced refresh, then one retry with the refreshed token.
//     Whatever the retry yields is returned. If the refresh itself fails,
//     OnTokenRefreshFailed fires and the original 401 is returned.
//   - 403: no retry. The session is ended at the provider; OnLogout fires
//     iff that succeeded. The original 403 is returned either way.
//   - anything else: returned unchanged.
//
// Transport failures (connectivity, timeouts, context cancellation) are
// returned unchanged; they are not an authentication concern. The caller
// owns the returned response body.
//
// Do never modifies req; attempts are built from clones.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	requestID := idx.New()

	// Route the request-scoped logger through the context so custom
	// transports can pick it up with slogx.FromContext.
	ctx := slogx.WithContext(req.Context(), c.log)
	ctx = slogx.WithRequestID(ctx, requestID.String())
	log := slogx.FromContext(ctx)

	attempt := req.Clone(ctx)

	if attempt.Header.Get("Authorization") == "" {
		token, err := c.cache.Get(ctx, c.cfg.ForceRefresh)
		if err != nil {
			// The caller may be intentionally unauthenticated, or the
			// provider has no active session. Let the server decide.
			log.Debug("proceeding without Authorization header", "error", err)
		} else {
			attempt.Header.Set("Authorization", "Bearer "+token.Value)
		}
	}

	if c.cfg.UseIdempotencyKeys && isMutating(req.Method) && attempt.Header.Get("Idempotency-Key") == "" {
		attempt.Header.Set("Idempotency-Key", requestID.String())
	}

	resp, err := c.transport.RoundTrip(attempt)
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return c.retryUnauthorized(ctx, log, req, attempt, resp)
	case http.StatusForbidden:
		return c.endSessionForbidden(ctx, log, resp)
	default:
		return resp, nil
	}
}

// retryUnauthorized handles a 401: force-refresh the token and replay the
// request exactly once. The second attempt's result is final regardless of
// its status.
func (c *Client) retryUnauthorized(
	ctx context.Context,
	log *slog.Logger,
	req *http.Request,
	attempt *http.Request,
	resp *http.Response,
) (*http.Response, error) {
	if req.Body != nil && req.GetBody == nil {
		// Replaying would send a consumed body. Skip the refresh entirely
		// and let the caller see the 401.
		log.Warn("401 response but request body is not replayable, not retrying")
		return resp, nil
	}

	token, err := c.cache.Get(ctx, true)
	if err != nil {
		log.Warn("token refresh after 401 failed", "error", err)
		// A cancelled wait is not a refresh failure; the shared fetch may
		// still succeed for other requests.
		var fetchErr *TokenFetchError
		if errors.As(err, &fetchErr) && c.cfg.OnTokenRefreshFailed != nil {
			c.cfg.OnTokenRefreshFailed(err)
		}
		return resp, nil
	}

	retry := attempt.Clone(ctx)
	retry.Header.Set("Authorization", "Bearer "+token.Value)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			log.Warn("reopening request body for retry failed", "error", err)
			return resp, nil
		}
		retry.Body = body
		retry.GetBody = req.GetBody
		retry.ContentLength = req.ContentLength
	}

	// The original 401 is replaced by the retry's outcome; release it back
	// to the connection pool first.
	httpx.DrainClose(resp)

	log.Debug("retrying request with refreshed token")
	return c.transport.RoundTrip(retry)
}

// endSessionForbidden handles a 403: end the session at the provider and
// notify the caller. The original response is always returned so the caller
// can render the denial.
func (c *Client) endSessionForbidden(
	ctx context.Context,
	log *slog.Logger,
	resp *http.Response,
) (*http.Response, error) {
	if err := c.provider.EndSession(ctx); err != nil {
		// The session may still be valid server-side; surfacing a false
		// logout event would be incorrect.
		log.Warn("ending session after 403 failed", "error", err)
		return resp, nil
	}

	log.Info("session ended after 403 response")
	if c.cfg.OnLogout != nil {
		c.cfg.OnLogout()
	}
	return resp, nil
}

// isMutating reports whether the method can have server-side effects worth
// protecting with an idempotency key.
func isMutating(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return false
	default:
		return true
	}
}

// roundTripper adapts a Client to http.RoundTripper for HTTPClient.
type roundTripper struct {
	client *Client
}

func (rt roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return rt.client.Do(req)
}
