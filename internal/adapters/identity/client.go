package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/plincohq/onboarding-service/internal/domain"
	"github.com/plincohq/onboarding-service/pkg/logger"
	"go.uber.org/zap"
)

// OAuthToken is a third-party access token held by the identity provider
// for a linked external account.
type OAuthToken struct {
	Token  string   `json:"token"`
	Scopes []string `json:"scopes"`
}

// TokenProvider exposes the identity provider operations the link
// controller needs. Implemented by Client; tests substitute stubs.
type TokenProvider interface {
	GetOAuthAccessToken(ctx context.Context, clerkID, provider string) (*OAuthToken, error)
	ReauthorizeAccount(ctx context.Context, clerkID, provider string, additionalScopes []string, redirectURL string) (string, error)
}

// Client handles communication with the identity provider's backend API
type Client struct {
	BaseURL    string
	SecretKey  string
	HTTPClient *http.Client
}

// NewClient creates an identity provider API client
func NewClient(baseURL, secretKey string) *Client {
	return &Client{
		BaseURL:   baseURL,
		SecretKey: secretKey,
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// tokenListResponse is the provider's OAuth access token listing
type tokenListResponse struct {
	Data []struct {
		Token  string   `json:"token"`
		Scopes []string `json:"scopes"`
	} `json:"data"`
}

// reauthorizeRequest asks the provider to re-run the OAuth consent flow
// with extra scopes, returning to redirectURL afterwards.
type reauthorizeRequest struct {
	AdditionalScopes []string `json:"additional_scopes"`
	RedirectURL      string   `json:"redirect_url"`
}

type reauthorizeResponse struct {
	Verification struct {
		ExternalVerificationRedirectURL string `json:"external_verification_redirect_url"`
	} `json:"verification"`
}

// GetOAuthAccessToken fetches the current access token for a user's linked
// external account. Returns ErrNotFound when no account is linked.
func (c *Client) GetOAuthAccessToken(ctx context.Context, clerkID, provider string) (*OAuthToken, error) {
	endpoint := fmt.Sprintf("%s/v1/users/%s/oauth_access_tokens/%s", c.BaseURL, clerkID, provider)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token lookup failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("no %s account linked for user %s: %w", provider, clerkID, domain.ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		logger.Base().Warn("token lookup returned non-200",
			zap.Int("status", resp.StatusCode),
			zap.String("clerk_id", clerkID))
		return nil, fmt.Errorf("token lookup returned status %d: %w", resp.StatusCode, domain.ErrAuth)
	}

	var parsed tokenListResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}

	if len(parsed.Data) == 0 || parsed.Data[0].Token == "" {
		return nil, fmt.Errorf("no %s token for user %s: %w", provider, clerkID, domain.ErrNotFound)
	}

	return &OAuthToken{
		Token:  parsed.Data[0].Token,
		Scopes: parsed.Data[0].Scopes,
	}, nil
}

// ReauthorizeAccount asks the provider to re-run the OAuth consent flow for
// the user's linked account with additional scopes. Returns the external
// verification redirect URL to send the browser to, or empty when the
// provider did not produce one.
func (c *Client) ReauthorizeAccount(ctx context.Context, clerkID, provider string, additionalScopes []string, redirectURL string) (string, error) {
	endpoint := fmt.Sprintf("%s/v1/users/%s/external_accounts/%s/reauthorize", c.BaseURL, clerkID, provider)

	payload, err := json.Marshal(reauthorizeRequest{
		AdditionalScopes: additionalScopes,
		RedirectURL:      redirectURL,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal reauthorize request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build reauthorize request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("reauthorize request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read reauthorize response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return "", fmt.Errorf("no %s account linked for user %s: %w", provider, clerkID, domain.ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("reauthorize returned status %d: %w", resp.StatusCode, domain.ErrAuth)
	}

	var parsed reauthorizeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode reauthorize response: %w", err)
	}

	return parsed.Verification.ExternalVerificationRedirectURL, nil
}
