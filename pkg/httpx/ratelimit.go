// Package httpx provides small HTTP client helpers: a rate-limited
// round tripper and response body hygiene.
package httpx

import (
	"net/http"
	"os"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig defines the rate limiting parameters.
type RateLimitConfig struct {
	// RequestsPerWindow is the number of requests allowed in the time window
	RequestsPerWindow int
	// Window is the time window for rate limiting
	Window time.Duration
	// Burst allows for temporary bursts above the rate limit
	Burst int
}

// TokenEndpointLimit is the default profile for identity-provider token
// endpoints. Single-flight coalescing already collapses concurrent refreshes,
// so anything past a handful of fetches per minute means a tight refresh
// loop. Override with: RATELIMIT_TOKEN_REQUESTS, RATELIMIT_TOKEN_WINDOW_SEC,
// RATELIMIT_TOKEN_BURST.
var TokenEndpointLimit = RateLimitConfig{
	RequestsPerWindow: 10,
	Window:            time.Minute,
	Burst:             10,
}

func init() {
	// Allow overriding rate limits via environment variables (useful for testing)
	TokenEndpointLimit = ParseRateLimitFromEnv("TOKEN", TokenEndpointLimit)
}

// ParseRateLimitFromEnv reads rate limit configuration from environment variables.
// Environment variables follow the pattern: RATELIMIT_{prefix}_{field}
// For example: RATELIMIT_TOKEN_REQUESTS, RATELIMIT_TOKEN_WINDOW_SEC, RATELIMIT_TOKEN_BURST
// This function is exported to allow custom rate limit configurations from environment variables.
func ParseRateLimitFromEnv(prefix string, defaultConfig RateLimitConfig) RateLimitConfig {
	config := defaultConfig

	// Parse requests per window
	if val := os.Getenv("RATELIMIT_" + prefix + "_REQUESTS"); val != "" {
		if requests, err := strconv.Atoi(val); err == nil && requests > 0 {
			config.RequestsPerWindow = requests
		}
	}

	// Parse window duration in seconds
	if val := os.Getenv("RATELIMIT_" + prefix + "_WINDOW_SEC"); val != "" {
		if windowSec, err := strconv.Atoi(val); err == nil && windowSec > 0 {
			config.Window = time.Duration(windowSec) * time.Second
		}
	}

	// Parse burst size
	if val := os.Getenv("RATELIMIT_" + prefix + "_BURST"); val != "" {
		if burst, err := strconv.Atoi(val); err == nil && burst > 0 {
			config.Burst = burst
		}
	}

	return config
}

// rateLimitedTransport delays outbound requests until the limiter grants a
// token, respecting request context cancellation while waiting.
type rateLimitedTransport struct {
	base    http.RoundTripper
	limiter *rate.Limiter
}

// NewRateLimitedTransport wraps base so that every request first waits for
// the rate limiter. A nil base uses http.DefaultTransport. A non-positive
// Window falls back to one minute rather than dividing the rate away to
// infinity. The wait honors the request's context: a cancelled request
// stops waiting and returns the context error without consuming a slot.
func NewRateLimitedTransport(base http.RoundTripper, config RateLimitConfig) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	if config.Window <= 0 {
		config.Window = time.Minute
	}

	ratePerSecond := float64(config.RequestsPerWindow) / config.Window.Seconds()

	return &rateLimitedTransport{
		base:    base,
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), config.Burst),
	}
}

func (t *rateLimitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.base.RoundTrip(req)
}
