package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agent-assist/ui-proxy/pkg/config"
	"github.com/agent-assist/ui-proxy/pkg/secret"
	"github.com/agent-assist/ui-proxy/pkg/state"
	"github.com/agent-assist/ui-proxy/pkg/tokens"
)

// markerGateway records that a request made it past the auth middleware.
type markerGateway struct {
	path string
}

func (m *markerGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.path = r.URL.Path
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"forwarded":true}`))
}

func newTestServer(t *testing.T) (http.Handler, *tokens.Issuer, *markerGateway) {
	t.Helper()

	cfg := &config.Config{
		ApplicationServerURL: testAppURL,
		DialogflowBaseHost:   config.DefaultDialogflowHost,
	}

	issuer, err := tokens.NewIssuer("test-signing-secret")
	require.NoError(t, err)
	sealer, err := secret.NewSealer("test-secret-phrase")
	require.NoError(t, err)
	guard, err := state.NewGuard("test-signing-secret")
	require.NoError(t, err)

	gw := &markerGateway{}
	handler := Handler(cfg, Deps{
		OAuth:   &fakeOAuth{authorizationURL: "https://idp.example.com/authorize?v=1.0"},
		Issuer:  issuer,
		Sealer:  sealer,
		Guard:   guard,
		Gateway: gw,
	})
	return handler, issuer, gw
}

func TestPing(t *testing.T) {
	t.Parallel()

	handler, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestCORSHeaders(t *testing.T) {
	t.Parallel()

	handler, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", testAppURL)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, testAppURL, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "PATCH")
}

func TestCORSPreflight(t *testing.T) {
	t.Parallel()

	handler, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/auth/token", nil)
	req.Header.Set("Origin", testAppURL)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, testAppURL, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestGatewayRequiresAccessToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		setup func(issuer *tokens.Issuer, req *http.Request)
	}{
		{"no token", func(_ *tokens.Issuer, _ *http.Request) {}},
		{"garbage token", func(_ *tokens.Issuer, req *http.Request) {
			req.Header.Set("Authorization", "Bearer not-a-token")
		}},
		{"refresh token used as access", func(issuer *tokens.Issuer, req *http.Request) {
			refresh, err := issuer.IssueRefresh("deadbeef")
			if err != nil {
				panic(err)
			}
			req.Header.Set("Authorization", "Bearer "+refresh)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			handler, issuer, gw := newTestServer(t)

			req := httptest.NewRequest(http.MethodGet, "/v2beta1/projects/p1/conversations/c1", nil)
			tt.setup(issuer, req)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), "Could not authenticate user")
			assert.Empty(t, gw.path)
		})
	}
}

func TestGatewayReachableWithAccessToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		path string
	}{
		{"global", "/v2beta1/projects/p1/conversations/c1"},
		{"regional", "/v2beta1/projects/p1/locations/us-central1/conversations/c1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			handler, issuer, gw := newTestServer(t)

			access, err := issuer.IssueAccess()
			require.NoError(t, err)

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			req.Header.Set("Authorization", "Bearer "+access)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.path, gw.path)
		})
	}
}

func TestAuthFlowMountedAtRoot(t *testing.T) {
	t.Parallel()

	handler, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet,
		"/?features=SMART_REPLY&conversationProfile="+testProfile, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), "idp.example.com")
}
