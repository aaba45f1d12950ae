// Package probe implements the authprobe tool: a long-running check that
// exercises an authenticated endpoint and reports on token refresh and
// session health.
package probe

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aussiebroadwan/authkit/pkg/authclient"
	"github.com/aussiebroadwan/authkit/pkg/httpx"
	"github.com/aussiebroadwan/authkit/pkg/oauthx"
	"github.com/aussiebroadwan/authkit/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Probe drives periodic authenticated requests against the target URL.
type Probe struct {
	cfg    Config
	logger *slog.Logger

	client *authclient.Client

	// loggedOut flips when the session is ended after a 403.
	loggedOut chan struct{}
}

// New creates a Probe with its provider and authenticated client wired up.
func New(cfg Config) (*Probe, error) {
	if cfg.TokenURL == "" {
		return nil, fmt.Errorf("PROBE_TOKEN_URL is required")
	}
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("PROBE_CLIENT_ID is required")
	}
	if cfg.RefreshToken == "" {
		return nil, fmt.Errorf("PROBE_REFRESH_TOKEN is required")
	}
	if cfg.TargetURL == "" {
		return nil, fmt.Errorf("PROBE_TARGET_URL is required")
	}

	logger := slogx.New(slogx.Config{
		Service: "authprobe",
		Version: BuildVersion,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	})

	provider, err := oauthx.NewProvider(oauthx.ProviderConfig{
		TokenURL:     cfg.TokenURL,
		RevokeURL:    cfg.RevokeURL,
		ClientID:     cfg.ClientID,
		RefreshToken: cfg.RefreshToken,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize provider: %w", err)
	}

	p := &Probe{
		cfg:       cfg,
		logger:    logger,
		loggedOut: make(chan struct{}),
	}

	client, err := authclient.New(provider, authclient.Config{
		TTL:                cfg.TokenTTL,
		UseIdempotencyKeys: cfg.IdempotencyKeys,
		Logger:             logger,
		OnLogout: func() {
			logger.Warn("session ended by server, stopping probe")
			close(p.loggedOut)
		},
		OnTokenRefreshFailed: func(err error) {
			logger.Error("token refresh failed", "error", err)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize client: %w", err)
	}
	p.client = client

	return p, nil
}

// Run probes the target until the configured count is reached, the session
// ends, or a shutdown signal arrives.
func (p *Probe) Run() error {
	p.logger.Info("authprobe starting",
		"target", p.cfg.TargetURL,
		"interval", p.cfg.Interval,
		"version", BuildVersion,
	)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	// First probe immediately rather than waiting out a full interval.
	probes := 0
	if err := p.probeOnce(context.Background()); err != nil {
		p.logger.Error("probe failed", "error", err)
	}
	probes++

	for p.cfg.Count == 0 || probes < p.cfg.Count {
		select {
		case <-ticker.C:
			if err := p.probeOnce(context.Background()); err != nil {
				p.logger.Error("probe failed", "error", err)
			}
			probes++
		case <-p.loggedOut:
			return fmt.Errorf("session ended after %d probes", probes)
		case sig := <-shutdown:
			p.logger.Info("shutdown signal received", "signal", sig)
			return nil
		}
	}

	p.logger.Info("probe complete", "probes", probes)
	return nil
}

// probeOnce sends one authenticated request and logs the outcome.
func (p *Probe) probeOnce(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.TargetURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer httpx.DrainClose(resp)

	p.logger.Info("probe result",
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}
