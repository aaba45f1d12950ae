package oauthx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// OAuth2 error codes per RFC 6749.
const (
	ErrorCodeInvalidRequest       = "invalid_request"
	ErrorCodeInvalidClient        = "invalid_client"
	ErrorCodeInvalidGrant         = "invalid_grant"
	ErrorCodeUnauthorizedClient   = "unauthorized_client"
	ErrorCodeUnsupportedGrantType = "unsupported_grant_type"
	ErrorCodeInvalidScope         = "invalid_scope"
	ErrorCodeServerError          = "server_error"
	ErrorCodeInvalidToken         = "invalid_token"
)

// ErrSessionEnded is returned from FetchToken after the refresh token has
// been revoked through EndSession. The provider cannot mint tokens again;
// the caller has to establish a new session.
var ErrSessionEnded = errors.New("oauthx: session ended, refresh token revoked")

// TokenError represents an OAuth2 error response per RFC 6749. It is
// returned when the token or revocation endpoint answers with a non-200
// status.
type TokenError struct {
	// StatusCode is the HTTP status code of the response
	StatusCode int `json:"-"`

	// Code is the OAuth2 error code (e.g., "invalid_request", "invalid_grant")
	Code string `json:"error"`

	// Description is a human-readable description of the error
	Description string `json:"error_description"`
}

// Error implements the error interface.
func (e *TokenError) Error() string {
	if e.Description == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// IsInvalidGrant reports whether err is a TokenError with the
// "invalid_grant" code, which means the refresh token was rejected and
// re-authentication is required.
func IsInvalidGrant(err error) bool {
	var tokenErr *TokenError
	return errors.As(err, &tokenErr) && tokenErr.Code == ErrorCodeInvalidGrant
}

// parseTokenError builds a typed error from a non-200 endpoint response.
// It consumes (but does not close) the response body.
func parseTokenError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))

	// Try parsing as standard OAuth2 error
	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return &TokenError{
			StatusCode:  resp.StatusCode,
			Code:        errResp.Error,
			Description: errResp.ErrorDescription,
		}
	}

	// Fallback: create generic error from status code
	return &TokenError{
		StatusCode:  resp.StatusCode,
		Code:        ErrorCodeServerError,
		Description: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}
