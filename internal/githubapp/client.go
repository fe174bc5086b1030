// Package githubapp implements the secondary provider adapter for the
// GitHub App installation flow: user token exchange, token refresh, and
// installation listing. GitHub Apps use OAuth 2.0 with expiring
// user-to-server tokens, so a refresh token accompanies every exchange.
package githubapp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/atdock/atdock/internal/provider"
)

// ProviderName tags ServiceErrors produced by this adapter.
const ProviderName = "github"

const (
	defaultTokenEndpoint         = "https://github.com/login/oauth/access_token"
	defaultInstallationsEndpoint = "https://api.github.com/user/installations"
)

// Config holds the client configuration.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// Endpoint overrides for tests. Empty means github.com.
	TokenEndpoint         string
	InstallationsEndpoint string
}

// Client is the GitHub App OAuth client.
type Client struct {
	cfg  Config
	http *http.Client
}

// New creates a new GitHub App client.
func New(cfg Config) *Client {
	if cfg.TokenEndpoint == "" {
		cfg.TokenEndpoint = defaultTokenEndpoint
	}
	if cfg.InstallationsEndpoint == "" {
		cfg.InstallationsEndpoint = defaultInstallationsEndpoint
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

// TokenPair is the delegated token pair returned by GitHub.
// RefreshToken is empty when token expiration is disabled for the App.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// tokenResponse is the response from GitHub's token endpoint.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
	Error        string `json:"error,omitempty"`
	ErrorDesc    string `json:"error_description,omitempty"`
}

// GetAccessToken exchanges an authorization code for a token pair.
func (g *Client) GetAccessToken(ctx context.Context, code string) (*TokenPair, error) {
	form := url.Values{}
	form.Set("client_id", g.cfg.ClientID)
	form.Set("client_secret", g.cfg.ClientSecret)
	form.Set("code", code)
	form.Set("redirect_uri", g.cfg.RedirectURL)
	return g.tokenRequest(ctx, form)
}

// RefreshAccessToken exchanges a refresh token for a rotated pair.
// GitHub invalidates the old refresh token on use; the caller must persist
// the returned pair.
func (g *Client) RefreshAccessToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	form := url.Values{}
	form.Set("client_id", g.cfg.ClientID)
	form.Set("client_secret", g.cfg.ClientSecret)
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	return g.tokenRequest(ctx, form)
}

func (g *Client) tokenRequest(ctx context.Context, form url.Values) (*TokenPair, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.TokenEndpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, provider.NewServiceError(ProviderName, provider.CodeRequestFailed, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := g.http.Do(req)
	if err != nil {
		return nil, provider.NewServiceError(ProviderName, provider.CodeRequestFailed, err)
	}
	defer resp.Body.Close()

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, provider.NewServiceError(ProviderName, provider.CodeInvalidResponse,
			fmt.Errorf("decode token response: %w", err))
	}

	// GitHub responde 200 con un campo error; el status no alcanza.
	if tr.Error != "" {
		return nil, provider.NewServiceError(ProviderName, provider.CodeAuthenticationFailed,
			fmt.Errorf("github oauth error: %s - %s", tr.Error, tr.ErrorDesc))
	}
	if tr.AccessToken == "" {
		return nil, provider.NewServiceError(ProviderName, provider.CodeInvalidResponse,
			fmt.Errorf("no access_token in response"))
	}

	return &TokenPair{AccessToken: tr.AccessToken, RefreshToken: tr.RefreshToken}, nil
}

// Installation is a read-only projection of a GitHub App installation.
// It is never persisted; it is fetched on demand with the stored token.
type Installation struct {
	ID      int64  `json:"id"`
	AppSlug string `json:"app_slug"`
	Account struct {
		Login     string `json:"login"`
		AvatarURL string `json:"avatar_url"`
		Type      string `json:"type"`
	} `json:"account"`
	RepositorySelection string `json:"repository_selection"`
}

// GetInstallations lists the App installations the token can access.
// A 401 surfaces as AUTHENTICATION_FAILED so callers can refresh and retry.
func (g *Client) GetInstallations(ctx context.Context, accessToken string) ([]Installation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.InstallationsEndpoint, nil)
	if err != nil {
		return nil, provider.NewServiceError(ProviderName, provider.CodeRequestFailed, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := g.http.Do(req)
	if err != nil {
		return nil, provider.NewServiceError(ProviderName, provider.CodeRequestFailed, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, provider.NewServiceError(ProviderName, provider.CodeAuthenticationFailed,
			fmt.Errorf("installations: status %d", resp.StatusCode))
	default:
		return nil, provider.NewServiceError(ProviderName, provider.CodeRequestFailed,
			fmt.Errorf("installations: status %d", resp.StatusCode))
	}

	var out struct {
		TotalCount    int            `json:"total_count"`
		Installations []Installation `json:"installations"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, provider.NewServiceError(ProviderName, provider.CodeInvalidResponse,
			fmt.Errorf("decode installations: %w", err))
	}
	return out.Installations, nil
}
