// Package identity verifies bearer credentials against the external auth
// service. It is a thin collaborator: given a token it returns the user's
// id and email, nothing more.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/starikovprod-pixel/ai-vfx-backend/internal/domain"
)

// ErrMissingBaseURL indicates that the client was configured without the auth service address.
var ErrMissingBaseURL = errors.New("identity: base url is required")

// Verifier resolves a bearer token into a user, or domain.ErrUnauthorized.
type Verifier interface {
	Verify(ctx context.Context, token string) (*domain.User, error)
}

// Options configures the identity client.
type Options struct {
	BaseURL        string
	APIKey         string
	HTTPClient     *http.Client
	RequestTimeout time.Duration
}

// Client calls the auth service's user endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// NewClient constructs an identity client.
func NewClient(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		return nil, ErrMissingBaseURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{baseURL: baseURL, apiKey: opts.APIKey, httpClient: httpClient}, nil
}

// Verify resolves the bearer token. Any non-success auth response maps to
// domain.ErrUnauthorized; transport failures are reported as-is so the
// caller can distinguish an outage from a bad credential.
func (c *Client) Verify(ctx context.Context, token string) (*domain.User, error) {
	if strings.TrimSpace(token) == "" {
		return nil, domain.ErrUnauthorized
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return nil, fmt.Errorf("identity: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("identity: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("identity: status %d: %w", resp.StatusCode, domain.ErrUnauthorized)
	}

	var decoded userResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("identity: decode response: %w", err)
	}
	if decoded.ID == "" {
		return nil, domain.ErrUnauthorized
	}
	return &domain.User{ID: decoded.ID, Email: decoded.Email}, nil
}

var _ Verifier = (*Client)(nil)
