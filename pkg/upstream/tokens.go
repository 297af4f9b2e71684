package upstream

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Common errors.
var (
	// ErrClientAuthFailed means the IdP rejected our client credentials.
	ErrClientAuthFailed = errors.New("client authentication failed")

	// ErrNotAuthenticated means the IdP rejected the user's access token.
	ErrNotAuthenticated = errors.New("could not authenticate user")
)

// Error carries an upstream non-2xx status and payload verbatim so callers
// can relay both to the browser unchanged.
type Error struct {
	Status int
	Body   []byte
}

func (e *Error) Error() string {
	return fmt.Sprintf("upstream returned status %d: %s", e.Status, e.Body)
}

// Tokens represents the credentials obtained from the upstream IdP. They are
// never persisted; they live only for the duration of one request cycle.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// tokenResponse is the wire shape of the IdP's token endpoint response.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// parseTokenResponse decodes a successful token endpoint payload.
func parseTokenResponse(body []byte) (*Tokens, error) {
	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("decoding token response: %w", err)
	}
	if tr.AccessToken == "" {
		return nil, errors.New("token response missing access_token")
	}

	tokens := &Tokens{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
	}
	if tr.ExpiresIn > 0 {
		tokens.ExpiresAt = time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	}
	return tokens, nil
}
