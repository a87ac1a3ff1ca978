// Package github provides functionality for interacting with the GitHub API.
package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/google/go-github/v73/github"

	"github.com/sevigo/commit-digest/internal/config"
	"github.com/sevigo/commit-digest/internal/core"
)

// tokenRefreshMargin is how long before expiry a cached token is replaced.
const tokenRefreshMargin = 5 * time.Minute

type cachedToken struct {
	token     string
	expiresAt time.Time
}

// TokenProvider mints GitHub App installation tokens and caches them until
// shortly before they expire.
type TokenProvider struct {
	appClient *github.Client
	logger    *slog.Logger
	now       func() time.Time

	mu     sync.Mutex
	tokens map[int64]cachedToken
}

var _ core.TokenProvider = (*TokenProvider)(nil)

// NewTokenProviderFromConfig reads the App private key from disk and builds a
// TokenProvider for it.
func NewTokenProviderFromConfig(cfg *config.GitHubConfig, logger *slog.Logger) (*TokenProvider, error) {
	privateKey, err := os.ReadFile(cfg.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key from %s: %w", cfg.PrivateKeyPath, err)
	}
	return NewTokenProvider(cfg.AppID, privateKey, cfg.APIBaseURL, logger)
}

// NewTokenProvider creates a provider authenticated as the App. apiBaseURL may
// be empty for github.com.
func NewTokenProvider(appID int64, privateKey []byte, apiBaseURL string, logger *slog.Logger) (*TokenProvider, error) {
	// The apps transport signs JWTs for the App API (installation tokens).
	appTransport, err := ghinstallation.NewAppsTransport(http.DefaultTransport, appID, privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create GitHub App transport: %w", err)
	}
	appClient := github.NewClient(&http.Client{Transport: appTransport})
	if apiBaseURL != "" {
		base, err := parseBaseURL(apiBaseURL)
		if err != nil {
			return nil, err
		}
		appTransport.BaseURL = strings.TrimSuffix(base.String(), "/")
		appClient.BaseURL = base
	}

	return &TokenProvider{
		appClient: appClient,
		logger:    logger,
		now:       time.Now,
		tokens:    make(map[int64]cachedToken),
	}, nil
}

// GetInstallationToken returns a token for installationID, reusing a cached
// one while it is valid for at least tokenRefreshMargin.
func (p *TokenProvider) GetInstallationToken(ctx context.Context, installationID int64) (string, error) {
	if installationID <= 0 {
		return "", fmt.Errorf("invalid installation id %d", installationID)
	}

	p.mu.Lock()
	cached, ok := p.tokens[installationID]
	p.mu.Unlock()
	if ok && p.now().Add(tokenRefreshMargin).Before(cached.expiresAt) {
		return cached.token, nil
	}

	p.logger.Info("creating GitHub installation token", "installation_id", installationID)
	token, _, err := p.appClient.Apps.CreateInstallationToken(ctx, installationID, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create installation token for installation ID %d: %w", installationID, err)
	}
	if token.GetToken() == "" {
		return "", errors.New("received an empty installation token")
	}

	expiresAt := token.GetExpiresAt().Time
	if expiresAt.IsZero() {
		expiresAt = p.now().Add(time.Hour)
	}
	p.mu.Lock()
	p.tokens[installationID] = cachedToken{token: token.GetToken(), expiresAt: expiresAt}
	p.mu.Unlock()

	p.logger.Debug("installation token created", "installation_id", installationID, "expires_at", expiresAt)
	return token.GetToken(), nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid GitHub API base URL %q: %w", raw, err)
	}
	return base, nil
}
