// Package atproto implements the identity provider adapter for the ATProto
// OAuth handshake: handle resolution, authorization redirect, code exchange
// to a DID, profile snapshots, and authoritative session validation.
package atproto

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
const ProviderName = "atproto"

const (
	resolveHandlePath = "/xrpc/com.atproto.identity.resolveHandle"
	resolveDIDPath    = "/xrpc/com.atproto.identity.resolveDid"
	getProfilePath    = "/xrpc/app.bsky.actor.getProfile"
	authorizePath     = "/oauth/authorize"
	tokenPath         = "/oauth/token"
)

// Config holds the client configuration.
type Config struct {
	// ServiceURL is the base URL of the ATProto service (PDS/entryway).
	ServiceURL string
	// ClientID identifies this app to the authorization server.
	ClientID string
	// RedirectURL is where the provider sends the callback.
	RedirectURL string
}

// Client is the ATProto identity client.
type Client struct {
	cfg  Config
	http *http.Client
}

// New creates a new ATProto client.
func New(cfg Config) *Client {
	cfg.ServiceURL = strings.TrimRight(cfg.ServiceURL, "/")
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

// Profile is the provider-side profile snapshot for a DID.
type Profile struct {
	DID         string `json:"did"`
	Handle      string `json:"handle"`
	DisplayName string `json:"displayName"`
	Description string `json:"description"`
	Avatar      string `json:"avatar"`
	Banner      string `json:"banner"`
}

// Authorize resolves a handle and builds the authorization redirect URL.
// The caller supplies the anti-forgery state; it travels opaque through the
// provider and comes back on the callback.
func (c *Client) Authorize(ctx context.Context, handle, state string) (string, error) {
	did, err := c.resolveHandle(ctx, handle)
	if err != nil {
		return "", err
	}

	u, err := url.Parse(c.cfg.ServiceURL + authorizePath)
	if err != nil {
		return "", provider.NewServiceError(ProviderName, provider.CodeRequestFailed, err)
	}
	q := u.Query()
	q.Set("client_id", c.cfg.ClientID)
	q.Set("redirect_uri", c.cfg.RedirectURL)
	q.Set("response_type", "code")
	q.Set("scope", "atproto")
	q.Set("login_hint", did)
	q.Set("state", state)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// tokenResponse is the response from the token endpoint.
// Sub carries the authenticated DID.
type tokenResponse struct {
	Sub       string `json:"sub"`
	ErrorCode string `json:"error,omitempty"`
	ErrorDesc string `json:"error_description,omitempty"`
}

// Callback exchanges the authorization code for an identity assertion and
// returns the DID.
func (c *Client) Callback(ctx context.Context, params url.Values) (string, error) {
	code := params.Get("code")
	if code == "" {
		return "", provider.NewServiceError(ProviderName, provider.CodeInvalidResponse,
			fmt.Errorf("callback missing code"))
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("client_id", c.cfg.ClientID)
	form.Set("redirect_uri", c.cfg.RedirectURL)
	form.Set("code", code)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.ServiceURL+tokenPath,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", provider.NewServiceError(ProviderName, provider.CodeRequestFailed, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", provider.NewServiceError(ProviderName, provider.CodeRequestFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusBadRequest {
		return "", provider.NewServiceError(ProviderName, provider.CodeAuthenticationFailed,
			fmt.Errorf("token endpoint status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return "", provider.NewServiceError(ProviderName, provider.CodeRequestFailed,
			fmt.Errorf("token endpoint status %d", resp.StatusCode))
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", provider.NewServiceError(ProviderName, provider.CodeInvalidResponse,
			fmt.Errorf("decode token response: %w", err))
	}
	if tr.ErrorCode != "" {
		return "", provider.NewServiceError(ProviderName, provider.CodeAuthenticationFailed,
			fmt.Errorf("oauth error: %s - %s", tr.ErrorCode, tr.ErrorDesc))
	}
	if tr.Sub == "" {
		return "", provider.NewServiceError(ProviderName, provider.CodeInvalidResponse,
			fmt.Errorf("no sub in token response"))
	}
	return tr.Sub, nil
}

// GetProfile fetches the profile snapshot for a DID.
func (c *Client) GetProfile(ctx context.Context, did string) (*Profile, error) {
	var p Profile
	if err := c.getJSON(ctx, getProfilePath, url.Values{"actor": {did}}, &p); err != nil {
		return nil, err
	}
	if p.DisplayName == "" {
		// Los perfiles nuevos pueden no tener display name; el handle sirve.
		p.DisplayName = p.Handle
	}
	return &p, nil
}

// ValidateSession re-confirms that the DID is still live and resolvable at
// the provider. A deactivated or tombstoned identity fails here even when
// the local credential is still within its TTL.
func (c *Client) ValidateSession(ctx context.Context, did string) error {
	var out struct {
		DID string `json:"did"`
	}
	if err := c.getJSON(ctx, resolveDIDPath, url.Values{"did": {did}}, &out); err != nil {
		return err
	}
	if out.DID != did {
		return provider.NewServiceError(ProviderName, provider.CodeAuthenticationFailed,
			fmt.Errorf("did mismatch: %s", out.DID))
	}
	return nil
}

func (c *Client) resolveHandle(ctx context.Context, handle string) (string, error) {
	var out struct {
		DID string `json:"did"`
	}
	if err := c.getJSON(ctx, resolveHandlePath, url.Values{"handle": {handle}}, &out); err != nil {
		return "", err
	}
	if out.DID == "" {
		return "", provider.NewServiceError(ProviderName, provider.CodeInvalidResponse,
			fmt.Errorf("empty did for handle %q", handle))
	}
	return out.DID, nil
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.cfg.ServiceURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return provider.NewServiceError(ProviderName, provider.CodeRequestFailed, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return provider.NewServiceError(ProviderName, provider.CodeRequestFailed, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden,
		resp.StatusCode == http.StatusBadRequest,
		resp.StatusCode == http.StatusNotFound:
		return provider.NewServiceError(ProviderName, provider.CodeAuthenticationFailed,
			fmt.Errorf("%s: status %d", path, resp.StatusCode))
	default:
		return provider.NewServiceError(ProviderName, provider.CodeRequestFailed,
			fmt.Errorf("%s: status %d", path, resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return provider.NewServiceError(ProviderName, provider.CodeInvalidResponse,
			fmt.Errorf("decode %s: %w", path, err))
	}
	return nil
}
