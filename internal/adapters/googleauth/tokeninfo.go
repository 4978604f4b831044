package googleauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTokenInfoURL = "https://www.googleapis.com/oauth2/v2/tokeninfo"

// TokenInfo describes a live Google access token: the scopes it grants and
// the seconds of lifetime it has left.
type TokenInfo struct {
	Scopes    []string
	ExpiresIn int
	Email     string
}

// TokenInspector looks up live token info. Implemented by Client; tests
// substitute stubs.
type TokenInspector interface {
	TokenInfo(ctx context.Context, accessToken string) (*TokenInfo, error)
}

// Client queries Google's tokeninfo endpoint
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a tokeninfo client. baseURL may be empty to use the
// Google default.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultTokenInfoURL
	}
	return &Client{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type tokenInfoResponse struct {
	Scope     string `json:"scope"`
	ExpiresIn int    `json:"expires_in"`
	Email     string `json:"email"`
}

// TokenInfo fetches scope and expiry information for an access token.
func (c *Client) TokenInfo(ctx context.Context, accessToken string) (*TokenInfo, error) {
	endpoint := fmt.Sprintf("%s?access_token=%s", c.BaseURL, url.QueryEscape(accessToken))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build tokeninfo request: %w", err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tokeninfo request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read tokeninfo response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tokeninfo returned status %d", resp.StatusCode)
	}

	var parsed tokenInfoResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode tokeninfo response: %w", err)
	}

	info := &TokenInfo{
		ExpiresIn: parsed.ExpiresIn,
		Email:     parsed.Email,
	}
	if parsed.Scope != "" {
		info.Scopes = strings.Split(parsed.Scope, " ")
	}
	return info, nil
}
