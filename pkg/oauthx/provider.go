// Package oauthx implements authclient.SessionProvider against a standard
// OAuth2 token endpoint. It exchanges a long-lived refresh token for access
// tokens (refresh_token grant, RFC 6749 §6) and ends the session by revoking
// the refresh token (RFC 7009).
package oauthx

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/authkit/pkg/authclient"
	"github.com/aussiebroadwan/authkit/pkg/httpx"
	"github.com/aussiebroadwan/authkit/pkg/slogx"
)

// DefaultExpiryBuffer is subtracted from the provider-reported expiry so a
// token is refreshed shortly before it actually lapses, avoiding a burst of
// 401s around the deadline.
const DefaultExpiryBuffer = 30 * time.Second

// ProviderConfig configures a Provider.
type ProviderConfig struct {
	// TokenURL is the OAuth2 token endpoint. Required.
	TokenURL string

	// RevokeURL is the RFC 7009 revocation endpoint. Optional: when empty,
	// EndSession only discards the locally held refresh token.
	RevokeURL string

	// ClientID identifies this client to the provider. Required.
	ClientID string

	// RefreshToken is the initial refresh token. Required. The provider
	// rotates it whenever the token endpoint returns a new one.
	RefreshToken string

	// HTTPClient performs the token endpoint calls. When nil a dedicated
	// client with a 10s timeout is used, wrapped in a rate-limited transport
	// (httpx.TokenEndpointLimit) so a refresh loop cannot hammer the
	// provider.
	HTTPClient *http.Client

	// ExpiryBuffer is subtracted from the reported token lifetime. Zero
	// selects DefaultExpiryBuffer; negative disables the buffer.
	ExpiryBuffer time.Duration

	// Logger receives structured logs. Nil discards everything.
	Logger *slog.Logger
}

// Provider implements authclient.SessionProvider over OAuth2. Safe for
// concurrent use; the only mutable state is the rotating refresh token.
type Provider struct {
	tokenURL   string
	revokeURL  string
	clientID   string
	httpClient *http.Client
	buffer     time.Duration
	log        *slog.Logger

	mu           sync.Mutex
	refreshToken string
}

// NewProvider creates a Provider from cfg.
func NewProvider(cfg ProviderConfig) (*Provider, error) {
	if cfg.TokenURL == "" {
		return nil, fmt.Errorf("oauthx: TokenURL is required")
	}
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("oauthx: ClientID is required")
	}
	if cfg.RefreshToken == "" {
		return nil, fmt.Errorf("oauthx: RefreshToken is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   10 * time.Second,
			Transport: httpx.NewRateLimitedTransport(nil, httpx.TokenEndpointLimit),
		}
	}

	buffer := cfg.ExpiryBuffer
	switch {
	case buffer == 0:
		buffer = DefaultExpiryBuffer
	case buffer < 0:
		buffer = 0
	}

	log := cfg.Logger
	if log == nil {
		log = slogx.Nop()
	}

	return &Provider{
		tokenURL:     cfg.TokenURL,
		revokeURL:    cfg.RevokeURL,
		clientID:     cfg.ClientID,
		httpClient:   httpClient,
		buffer:       buffer,
		log:          log,
		refreshToken: cfg.RefreshToken,
	}, nil
}

// FetchToken requests a fresh access token via the refresh_token grant.
// Every grant call mints a new token at the provider, so forceRefresh needs
// no special handling here; it exists for providers that cache upstream.
func (p *Provider) FetchToken(ctx context.Context, forceRefresh bool) (authclient.Token, error) {
	p.mu.Lock()
	refreshToken := p.refreshToken
	p.mu.Unlock()

	if refreshToken == "" {
		return authclient.Token{}, ErrSessionEnded
	}

	data := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"client_id":     {p.clientID},
	}

	tokenResp, err := p.requestToken(ctx, data)
	if err != nil {
		return authclient.Token{}, err
	}

	// Rotating providers return a replacement refresh token; keep it so the
	// next grant doesn't present an already-consumed one.
	if tokenResp.RefreshToken != "" {
		p.mu.Lock()
		p.refreshToken = tokenResp.RefreshToken
		p.mu.Unlock()
	}

	now := time.Now()
	token := authclient.Token{
		Value:     tokenResp.AccessToken,
		ExpiresAt: tokenExpiry(tokenResp, now, p.buffer),
	}

	p.log.Debug("access token refreshed",
		"forced", forceRefresh,
		"expires_at", token.ExpiresAt,
	)
	return token, nil
}

// EndSession revokes the refresh token at the provider and discards it
// locally. The local token is only discarded after the revocation succeeds:
// when the revoke call fails the session may still be valid server-side and
// a later retry must still be possible.
func (p *Provider) EndSession(ctx context.Context) error {
	p.mu.Lock()
	refreshToken := p.refreshToken
	p.mu.Unlock()

	if refreshToken == "" {
		// Nothing to revoke; ending an ended session is a no-op.
		return nil
	}

	if p.revokeURL != "" {
		data := url.Values{
			"token":     {refreshToken},
			"client_id": {p.clientID},
		}

		resp, err := p.postForm(ctx, p.revokeURL, data)
		if err != nil {
			return fmt.Errorf("oauthx: revoke request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return parseTokenError(resp)
		}
	}

	p.mu.Lock()
	p.refreshToken = ""
	p.mu.Unlock()

	p.log.Info("session ended, refresh token revoked")
	return nil
}

// requestToken posts the form to the token endpoint and decodes the
// response.
func (p *Provider) requestToken(ctx context.Context, data url.Values) (*TokenResponse, error) {
	resp, err := p.postForm(ctx, p.tokenURL, data)
	if err != nil {
		return nil, fmt.Errorf("oauthx: token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, parseTokenError(resp)
	}

	tokenResp, err := decodeTokenResponse(resp)
	if err != nil {
		return nil, err
	}
	if tokenResp.AccessToken == "" {
		return nil, fmt.Errorf("oauthx: token response contained no access_token")
	}
	return tokenResp, nil
}

func (p *Provider) postForm(ctx context.Context, endpoint string, data url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		endpoint,
		strings.NewReader(data.Encode()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return p.httpClient.Do(req)
}
