package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/agent-assist/ui-proxy/pkg/logger"
	"github.com/agent-assist/ui-proxy/pkg/secret"
	"github.com/agent-assist/ui-proxy/pkg/tokens"
	"github.com/agent-assist/ui-proxy/pkg/upstream"
)

// maxAuthBodySize bounds auth endpoint request bodies.
const maxAuthBodySize = 64 * 1024

// OAuthClient is the subset of the upstream client the auth endpoints use.
type OAuthClient interface {
	AuthorizationURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*upstream.Tokens, error)
	Refresh(ctx context.Context, refreshToken string) (*upstream.Tokens, error)
	VerifyAccountStanding(ctx context.Context, accessToken string) error
}

// tokenPair is the response shape of both auth endpoints.
type tokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type authRoutes struct {
	oauth  OAuthClient
	issuer *tokens.Issuer
	sealer *secret.Sealer
	appURL string
}

// AuthRouter sets up the /token and /refresh endpoints.
func AuthRouter(oauth OAuthClient, issuer *tokens.Issuer, sealer *secret.Sealer, appURL string) http.Handler {
	routes := &authRoutes{oauth: oauth, issuer: issuer, sealer: sealer, appURL: appURL}
	r := chi.NewRouter()
	r.Post("/token", routes.token)
	r.Post("/refresh", routes.refresh)
	return r
}

// token exchanges the OAuth authorization code embedded in the client's
// redirect URI for a proxy access/refresh token pair.
func (h *authRoutes) token(w http.ResponseWriter, r *http.Request) {
	redirectURI, ok := readBodyField(w, r, "redirectUri")
	if !ok {
		return
	}

	code, err := codeFromRedirectURI(redirectURI)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	creds, err := h.oauth.ExchangeCode(r.Context(), code)
	if err != nil {
		logger.Errorw("authorization code exchange failed", "error", err)
		if errors.Is(err, upstream.ErrClientAuthFailed) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Client authentication failed"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	// Confirm the freshly issued access token is actually usable before
	// minting anything on the strength of it.
	if err := h.oauth.VerifyAccountStanding(r.Context(), creds.AccessToken); err != nil {
		h.writeStandingFailure(w, err)
		return
	}

	pair, err := h.mintPair(creds.RefreshToken)
	if err != nil {
		logger.Errorw("failed to mint proxy tokens", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Could not issue tokens"})
		return
	}

	writeJSON(w, http.StatusOK, pair)
}

// writeStandingFailure maps an account-standing error to the response.
// A 401/403 from the probe means the user could not be authenticated; any
// other upstream status is relayed with a pointer back to the auth entry.
func (h *authRoutes) writeStandingFailure(w http.ResponseWriter, err error) {
	var upstreamErr *upstream.Error
	switch {
	case errors.Is(err, upstream.ErrNotAuthenticated):
		status := http.StatusUnauthorized
		if errors.As(err, &upstreamErr) {
			status = upstreamErr.Status
		}
		writeJSON(w, status, map[string]string{"error": "Could not authenticate user"})
	case errors.As(err, &upstreamErr):
		writeJSON(w, upstreamErr.Status, map[string]string{
			"error":          "Error verifying authentication token",
			"authEntryPoint": h.appURL,
		})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

// refresh redeems a proxy refresh token for a fresh token pair.
//
// Every failure mode answers with the same generic message: which sub-step
// failed (signature, expiry, decryption, upstream rejection) must not be
// observable from outside.
func (h *authRoutes) refresh(w http.ResponseWriter, r *http.Request) {
	proxyRefreshToken, ok := readBodyField(w, r, "refreshToken")
	if !ok {
		return
	}

	// Local verification comes first: a stale or forged token never
	// triggers an upstream call.
	sealed, err := h.issuer.VerifyRefresh(proxyRefreshToken)
	if err != nil {
		logger.Warnw("refresh token rejected", "error", err)
		writeRefreshFailure(w)
		return
	}

	upstreamRefresh, err := h.sealer.Open(sealed)
	if err != nil {
		logger.Warnw("could not unseal refresh token", "error", err)
		writeRefreshFailure(w)
		return
	}

	creds, err := h.oauth.Refresh(r.Context(), upstreamRefresh)
	if err != nil {
		logger.Errorw("upstream token refresh failed", "error", err)
		writeRefreshFailure(w)
		return
	}

	// The IdP may rotate the refresh token; keep the old one when it
	// does not.
	nextRefresh := creds.RefreshToken
	if nextRefresh == "" {
		nextRefresh = upstreamRefresh
	}

	pair, err := h.mintPair(nextRefresh)
	if err != nil {
		logger.Errorw("failed to mint proxy tokens", "error", err)
		writeRefreshFailure(w)
		return
	}

	writeJSON(w, http.StatusOK, pair)
}

// mintPair seals the upstream refresh token and mints an access/refresh
// proxy token pair.
func (h *authRoutes) mintPair(upstreamRefresh string) (*tokenPair, error) {
	sealed, err := h.sealer.Seal(upstreamRefresh)
	if err != nil {
		return nil, err
	}

	access, err := h.issuer.IssueAccess()
	if err != nil {
		return nil, err
	}
	refresh, err := h.issuer.IssueRefresh(sealed)
	if err != nil {
		return nil, err
	}

	return &tokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func writeRefreshFailure(w http.ResponseWriter) {
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Could not refresh token"})
}

// codeFromRedirectURI extracts the authorization code from the redirect
// URI the IdP sent the browser back to.
func codeFromRedirectURI(redirectURI string) (string, error) {
	parsed, err := url.Parse(redirectURI)
	if err != nil {
		return "", errors.New("redirectUri is not a valid URL")
	}
	code := parsed.Query().Get("code")
	if code == "" {
		return "", errors.New("redirectUri is missing an authorization code")
	}
	return code, nil
}

// readBodyField reads one named string field from the request body. The
// body is normally JSON; a legacy client variant sends it as a
// query-string-shaped plaintext blob, which is accepted as a fallback.
func readBodyField(w http.ResponseWriter, r *http.Request, field string) (string, bool) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxAuthBodySize))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "could not read request body"})
		return "", false
	}

	var body map[string]string
	if err := json.Unmarshal(raw, &body); err == nil {
		if v := body[field]; v != "" {
			return v, true
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": field + " is required"})
		return "", false
	}

	// Legacy plaintext blob.
	if values, err := url.ParseQuery(string(raw)); err == nil {
		if v := values.Get(field); v != "" {
			return v, true
		}
	}

	writeJSON(w, http.StatusBadRequest, map[string]string{"error": field + " is required"})
	return "", false
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Warnw("failed to write response", "error", err)
	}
}
