package oauthx

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// maxResponseBytes bounds how much of a token endpoint response is read.
// Well-formed responses are tiny; this guards against a misbehaving server.
const maxResponseBytes = 1 << 20

// TokenResponse represents the OAuth2 token endpoint response per RFC 6749.
// This is returned from the token endpoint for the refresh_token grant.
type TokenResponse struct {
	// AccessToken is the bearer token used to authenticate API requests
	AccessToken string `json:"access_token"`

	// RefreshToken is the opaque refresh token used to obtain new access
	// tokens. Rotating providers return a replacement on every grant.
	RefreshToken string `json:"refresh_token,omitempty"`

	// TokenType is always "Bearer" per OAuth2 spec
	TokenType string `json:"token_type"`

	// ExpiresIn is the lifetime in seconds of the access token
	ExpiresIn int `json:"expires_in"`

	// Scope is the space-delimited list of scopes granted to this token
	Scope string `json:"scope,omitempty"`
}

// errorResponse represents a standard OAuth2 error response per RFC 6749.
// Used internally for parsing HTTP error responses; client code sees the
// TokenError type from errors.go instead.
type errorResponse struct {
	// Error is the OAuth2 error code (e.g., "invalid_request", "invalid_grant")
	Error string `json:"error"`

	// ErrorDescription is a human-readable description of the error
	ErrorDescription string `json:"error_description"`
}

// decodeTokenResponse decodes a successful token endpoint response body.
func decodeTokenResponse(resp *http.Response) (*TokenResponse, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("oauthx: failed to read token response: %w", err)
	}

	var tokenResp TokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, fmt.Errorf("oauthx: failed to decode token response: %w", err)
	}
	return &tokenResp, nil
}
