// Package upstream handles communication with the upstream Identity
// Provider: the authorization-code exchange, the refresh-token grant, and a
// lightweight account-standing probe used to confirm freshly issued access
// tokens before trusting them.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/agent-assist/ui-proxy/pkg/logger"
)

// maxResponseSize bounds upstream response bodies.
const maxResponseSize = 1024 * 1024 // 1MB

// httpTimeout is the timeout for outgoing requests to the IdP.
const httpTimeout = 30 * time.Second

// HTTPClient abstracts the HTTP client so tests can substitute a double.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config describes the upstream IdP coordinates.
type Config struct {
	// Domain is the IdP host serving the sentinel authorization endpoints.
	Domain string

	// AccountID scopes the sentinel endpoints to one account.
	AccountID string

	ClientID     string
	ClientSecret string

	// RedirectURI is the registered OAuth redirect target.
	RedirectURI string

	// AccountConfigDomain hosts the read-only account configuration API
	// used by VerifyAccountStanding.
	AccountConfigDomain string
}

// Validate checks that the config has all required fields.
func (c *Config) Validate() error {
	switch {
	case c.Domain == "":
		return errors.New("IdP domain is required")
	case c.AccountID == "":
		return errors.New("account ID is required")
	case c.ClientID == "":
		return errors.New("client ID is required")
	case c.ClientSecret == "":
		return errors.New("client secret is required")
	case c.RedirectURI == "":
		return errors.New("redirect URI is required")
	}
	return nil
}

// AuthorizationEndpoint returns the IdP's authorization endpoint URL.
func (c *Config) AuthorizationEndpoint() string {
	return fmt.Sprintf("https://%s/sentinel/api/account/%s/authorize?v=1.0", c.Domain, c.AccountID)
}

// TokenEndpoint returns the IdP's token endpoint URL.
func (c *Config) TokenEndpoint() string {
	return fmt.Sprintf("https://%s/sentinel/api/account/%s/token?v=1.0", c.Domain, c.AccountID)
}

// statusReasonsURL is the known-good authenticated resource probed by
// VerifyAccountStanding.
func (c *Config) statusReasonsURL() string {
	return fmt.Sprintf("https://%s/api/account/%s/configuration/le-agents/status-reasons",
		c.AccountConfigDomain, c.AccountID)
}

// Client performs OAuth flows against the upstream IdP.
type Client struct {
	config     *Config
	httpClient HTTPClient
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient HTTPClient) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a new upstream OAuth client.
func NewClient(config *Config, opts ...ClientOption) (*Client, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	c := &Client{
		config:     config,
		httpClient: &http.Client{Timeout: httpTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// AuthorizationURL builds the URL to redirect the user to the upstream IdP.
func (c *Client) AuthorizationURL(state string) string {
	params := url.Values{
		"response_type": {"code"},
		"client_id":     {c.config.ClientID},
		"redirect_uri":  {c.config.RedirectURI},
		"state":         {state},
	}
	// The sentinel endpoint already carries a query string (?v=1.0).
	return c.config.AuthorizationEndpoint() + "&" + params.Encode()
}

// ExchangeCode exchanges an authorization code for tokens with the IdP.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*Tokens, error) {
	if code == "" {
		return nil, errors.New("authorization code is required")
	}

	return c.tokenRequest(ctx, url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {c.config.RedirectURI},
		"client_id":     {c.config.ClientID},
		"client_secret": {c.config.ClientSecret},
	})
}

// Refresh redeems a refresh token for a fresh set of upstream tokens.
// Non-200 responses propagate the IdP's status code and payload verbatim.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	if refreshToken == "" {
		return nil, errors.New("refresh token is required")
	}

	return c.tokenRequest(ctx, url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"client_id":     {c.config.ClientID},
		"client_secret": {c.config.ClientSecret},
	})
}

// VerifyAccountStanding performs an authenticated read against a known-good
// upstream resource purely to confirm a freshly obtained access token is
// valid before trusting it.
func (c *Client) VerifyAccountStanding(ctx context.Context, accessToken string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.statusReasonsURL(), nil)
	if err != nil {
		return fmt.Errorf("creating status reasons request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("status reasons request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("reading status reasons response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		logger.Warnw("account standing check rejected token", "status", resp.StatusCode)
		// Both the sentinel and the exact upstream status are needed by the
		// caller: one drives the error taxonomy, the other is relayed.
		return fmt.Errorf("%w: %w", ErrNotAuthenticated, &Error{Status: resp.StatusCode, Body: body})
	default:
		logger.Errorw("account standing check failed", "status", resp.StatusCode)
		return &Error{Status: resp.StatusCode, Body: body}
	}
}

// tokenRequest performs a form-encoded grant request against the token
// endpoint and parses the response.
func (c *Client) tokenRequest(ctx context.Context, params url.Values) (*Tokens, error) {
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.config.TokenEndpoint(),
		strings.NewReader(params.Encode()),
	)
	if err != nil {
		return nil, fmt.Errorf("creating token request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("reading token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, tokenError(resp.StatusCode, body, params.Get("grant_type"))
	}

	return parseTokenResponse(body)
}

// tokenError maps a non-200 token endpoint response to an error. The IdP's
// invalid-client report is distinguished so callers can answer 401 instead
// of relaying an opaque failure.
func tokenError(status int, body []byte, grantType string) error {
	errCode := gjson.GetBytes(body, "error").String()
	errDesc := gjson.GetBytes(body, "error_description").String()

	logger.Errorw("token request rejected",
		"grant_type", grantType,
		"status", status,
		"error", errCode,
	)

	if errCode == "invalid_client" || strings.Contains(errDesc, "Client authentication failed") ||
		strings.Contains(string(body), "Client authentication failed") {
		return fmt.Errorf("%w: %s", ErrClientAuthFailed, errDesc)
	}

	return &Error{Status: status, Body: body}
}
