package authclient

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/authkit/pkg/slogx"
)

// DefaultTTL is the default freshness window for a cached token. A token
// older than this is refreshed before the next request proceeds. Smaller
// values trade more provider calls for fresher tokens.
const DefaultTTL = 5 * time.Minute

// Config configures a Client. The zero value is usable: a nil callback is a
// silent no-op, a zero TTL means DefaultTTL, a nil Transport means
// http.DefaultTransport.
type Config struct {
	// TTL bounds how long a cached token is considered fresh. Zero or
	// negative selects DefaultTTL.
	TTL time.Duration

	// ForceRefresh makes every request ask the provider for a fresh token
	// instead of serving from cache. Concurrent requests still coalesce
	// into one fetch. Mainly useful for debugging provider integrations.
	ForceRefresh bool

	// OnLogout is invoked after a 403 response when the session was
	// successfully ended at the provider. The caller should transition its
	// application state to logged-out. Optional.
	OnLogout func()

	// OnTokenRefreshFailed is invoked when the forced refresh after a 401
	// failed. Advisory only: it does not itself trigger a logout or retry,
	// the caller may choose to force re-authentication. Optional.
	OnTokenRefreshFailed func(error)

	// Transport performs the actual network I/O. Defaults to
	// http.DefaultTransport.
	Transport http.RoundTripper

	// Logger receives structured logs (refresh failures, logout events,
	// skipped retries). Nil discards everything.
	Logger *slog.Logger

	// UseIdempotencyKeys adds an Idempotency-Key header (a ULID) to mutating
	// requests and reuses the same key on a 401 retry, so servers that
	// support idempotency keys can deduplicate a replayed mutation.
	UseIdempotencyKeys bool
}

// withDefaults returns a copy of cfg with zero values replaced by defaults.
func (cfg Config) withDefaults() Config {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Transport == nil {
		cfg.Transport = http.DefaultTransport
	}
	if cfg.Logger == nil {
		cfg.Logger = slogx.Nop()
	}
	return cfg
}
