// Package config contains the definition of the application config structure
// and logic required to load it from the environment.
package config

import (
	"fmt"
	"net/url"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// DefaultDialogflowHost is the unprefixed (global) Dialogflow API host.
const DefaultDialogflowHost = "dialogflow.googleapis.com"

// Config holds all environment-based configuration for the proxy server.
// Secrets are loaded once at process start and treated as immutable for the
// process lifetime.
type Config struct {
	// Upstream IdP coordinates. The authorization and token endpoints are
	// derived from the domain and account ID.
	IdPDomain    string `env:"IDP_DOMAIN"`
	AccountID    string `env:"IDP_ACCOUNT_ID"`
	ClientID     string `env:"IDP_CLIENT_ID"`
	ClientSecret string `env:"IDP_CLIENT_SECRET"`

	// AccountConfigDomain hosts the read-only account configuration API used
	// to verify that a freshly issued access token is actually usable.
	AccountConfigDomain string `env:"IDP_ACCOUNT_CONFIG_DOMAIN"`

	// JWTSecret signs the proxy access and refresh tokens.
	JWTSecret string `env:"JWT_SECRET"`

	// SecretPhrase derives the key used to encrypt the upstream refresh
	// token before embedding it in a proxy refresh token.
	SecretPhrase string `env:"SECRET_PHRASE"`

	// ApplicationServerURL is the browser-facing origin of the application
	// server. It is both the allowed CORS origin and the base of the OAuth
	// redirect URI.
	ApplicationServerURL string `env:"APPLICATION_SERVER_URL"`

	// DialogflowBaseHost is the unprefixed Dialogflow API host. Regional
	// requests prepend "<location>-" to it.
	DialogflowBaseHost string `env:"DIALOGFLOW_BASE_HOST" envDefault:"dialogflow.googleapis.com"`

	Port int `env:"PORT" envDefault:"8080"`

	// Environment labels the deployment environment (production, staging,
	// development).
	Environment string `env:"ENVIRONMENT" envDefault:"production"`
}

// Load reads configuration from environment variables.
// It first attempts to load a .env file if present, then parses env vars.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"IDP_DOMAIN", c.IdPDomain},
		{"IDP_ACCOUNT_ID", c.AccountID},
		{"IDP_CLIENT_ID", c.ClientID},
		{"IDP_CLIENT_SECRET", c.ClientSecret},
		{"IDP_ACCOUNT_CONFIG_DOMAIN", c.AccountConfigDomain},
		{"JWT_SECRET", c.JWTSecret},
		{"SECRET_PHRASE", c.SecretPhrase},
		{"APPLICATION_SERVER_URL", c.ApplicationServerURL},
	}
	for _, f := range required {
		if f.value == "" {
			return fmt.Errorf("%s is required", f.name)
		}
	}

	if _, err := url.ParseRequestURI(c.ApplicationServerURL); err != nil {
		return fmt.Errorf("APPLICATION_SERVER_URL is not a valid URL: %w", err)
	}

	return nil
}

// RedirectURI is the OAuth redirect target registered with the IdP.
func (c *Config) RedirectURI() string {
	return c.ApplicationServerURL + "/home"
}
