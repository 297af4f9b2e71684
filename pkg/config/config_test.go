package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// configEnvKeys lists every env var the config reads.
var configEnvKeys = []string{
	"IDP_DOMAIN",
	"IDP_ACCOUNT_ID",
	"IDP_CLIENT_ID",
	"IDP_CLIENT_SECRET",
	"IDP_ACCOUNT_CONFIG_DOMAIN",
	"JWT_SECRET",
	"SECRET_PHRASE",
	"APPLICATION_SERVER_URL",
	"DIALOGFLOW_BASE_HOST",
	"PORT",
	"ENVIRONMENT",
}

// clearConfigEnv unsets all config env vars so tests start clean.
func clearConfigEnv(t *testing.T) {
	t.Helper()

	for _, key := range configEnvKeys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

// setValidEnv sets the minimum env vars for a loadable config.
func setValidEnv(t *testing.T) {
	t.Helper()
	t.Setenv("IDP_DOMAIN", "sentinel.example.com")
	t.Setenv("IDP_ACCOUNT_ID", "12345678")
	t.Setenv("IDP_CLIENT_ID", "client-id")
	t.Setenv("IDP_CLIENT_SECRET", "client-secret")
	t.Setenv("IDP_ACCOUNT_CONFIG_DOMAIN", "account-config.example.com")
	t.Setenv("JWT_SECRET", "signing-secret")
	t.Setenv("SECRET_PHRASE", "cipher-phrase")
	t.Setenv("APPLICATION_SERVER_URL", "https://app.example.com")
}

func TestLoadValid(t *testing.T) { //nolint:paralleltest // mutates env
	clearConfigEnv(t)
	setValidEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sentinel.example.com", cfg.IdPDomain)
	assert.Equal(t, "12345678", cfg.AccountID)
	assert.Equal(t, DefaultDialogflowHost, cfg.DialogflowBaseHost)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "https://app.example.com/home", cfg.RedirectURI())
}

func TestLoadOverrides(t *testing.T) { //nolint:paralleltest // mutates env
	clearConfigEnv(t)
	setValidEnv(t)
	t.Setenv("DIALOGFLOW_BASE_HOST", "dialogflow.example.com")
	t.Setenv("PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "dialogflow.example.com", cfg.DialogflowBaseHost)
	assert.Equal(t, 9090, cfg.Port)
}

func TestLoadMissingRequired(t *testing.T) { //nolint:paralleltest // mutates env
	tests := []struct {
		name    string
		unset   string
		wantErr string
	}{
		{"missing idp domain", "IDP_DOMAIN", "IDP_DOMAIN is required"},
		{"missing account id", "IDP_ACCOUNT_ID", "IDP_ACCOUNT_ID is required"},
		{"missing client id", "IDP_CLIENT_ID", "IDP_CLIENT_ID is required"},
		{"missing client secret", "IDP_CLIENT_SECRET", "IDP_CLIENT_SECRET is required"},
		{"missing jwt secret", "JWT_SECRET", "JWT_SECRET is required"},
		{"missing secret phrase", "SECRET_PHRASE", "SECRET_PHRASE is required"},
		{"missing app url", "APPLICATION_SERVER_URL", "APPLICATION_SERVER_URL is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearConfigEnv(t)
			setValidEnv(t)
			os.Unsetenv(tt.unset)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadRejectsInvalidApplicationURL(t *testing.T) { //nolint:paralleltest // mutates env
	clearConfigEnv(t)
	setValidEnv(t)
	t.Setenv("APPLICATION_SERVER_URL", "not a url")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "APPLICATION_SERVER_URL")
}
