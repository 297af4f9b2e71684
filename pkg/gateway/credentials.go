package gateway

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// DialogflowScope is the fixed OAuth scope requested for machine credentials.
const DialogflowScope = "https://www.googleapis.com/auth/dialogflow"

// ServiceCredentials supplies machine-to-machine tokens for upstream API
// calls. It is deliberately a distinct type from the proxy's user-facing
// tokens: a user-supplied bearer token can never be substituted for it.
type ServiceCredentials struct {
	source oauth2.TokenSource
}

// NewServiceCredentials builds service credentials from Application Default
// Credentials with the Dialogflow scope.
func NewServiceCredentials(ctx context.Context) (*ServiceCredentials, error) {
	source, err := google.DefaultTokenSource(ctx, DialogflowScope)
	if err != nil {
		return nil, fmt.Errorf("loading application default credentials: %w", err)
	}
	return &ServiceCredentials{source: oauth2.ReuseTokenSource(nil, source)}, nil
}

// NewStaticServiceCredentials wraps a fixed token source. Intended for tests.
func NewStaticServiceCredentials(source oauth2.TokenSource) *ServiceCredentials {
	return &ServiceCredentials{source: source}
}

// Token returns a valid machine access token, refreshing as needed.
func (c *ServiceCredentials) Token() (*oauth2.Token, error) {
	return c.source.Token()
}
