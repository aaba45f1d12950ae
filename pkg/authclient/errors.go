package authclient

import (
	"errors"
	"fmt"
)

// ErrProviderRequired is returned by New when no SessionProvider is given.
var ErrProviderRequired = errors.New("authclient: session provider is required")

// TokenFetchError wraps a provider failure to produce a token. Callers can
// use errors.As to distinguish "the provider could not mint a credential"
// from transport or context errors:
//
//	var fetchErr *authclient.TokenFetchError
//	if errors.As(err, &fetchErr) { ... }
//
// The underlying provider error is available via Unwrap.
type TokenFetchError struct {
	// Forced is true when the failed fetch was a forced refresh (after a
	// 401) rather than an initial cache fill.
	Forced bool

	// Err is the provider's error.
	Err error
}

// Error implements the error interface.
func (e *TokenFetchError) Error() string {
	if e.Forced {
		return fmt.Sprintf("authclient: forced token refresh failed: %v", e.Err)
	}
	return fmt.Sprintf("authclient: token fetch failed: %v", e.Err)
}

// Unwrap returns the provider's error.
func (e *TokenFetchError) Unwrap() error { return e.Err }
