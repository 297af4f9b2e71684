package api

import (
	"fmt"
	"net/http"
	"net/url"
	"regexp"

	"github.com/google/uuid"

	"github.com/agent-assist/ui-proxy/pkg/logger"
	"github.com/agent-assist/ui-proxy/pkg/state"
)

// requestIDCookie carries the per-flow request ID between the entry
// redirect and the IdP's callback.
const requestIDCookie = "requestId"

// conversationProfilePattern matches a fully qualified conversation profile
// resource name.
var conversationProfilePattern = regexp.MustCompile(
	`^projects/[^/]+/locations/[^/]+/conversationProfiles/[^/]+$`)

type flowRoutes struct {
	oauth OAuthClient
	guard *state.Guard

	// appURL is the UI application origin users are sent back to.
	appURL string
}

// entry starts the login flow. It validates the UI parameters, drops a
// request ID cookie, and redirects the browser to the IdP with the
// parameters bound into the OAuth state.
func (h *flowRoutes) entry(w http.ResponseWriter, r *http.Request) {
	features := r.URL.Query().Get("features")
	if features == "" {
		writeText(w, http.StatusBadRequest,
			"Features not specified. Please specify the features to load, e.g. ?features=SMART_REPLY,ARTICLE_SUGGESTION")
		return
	}

	conversationProfile := r.URL.Query().Get("conversationProfile")
	if !conversationProfilePattern.MatchString(conversationProfile) {
		writeText(w, http.StatusBadRequest,
			"Conversation profile not specified or malformed. Expected format: "+
				"projects/<projectId>/locations/<locationId>/conversationProfiles/<conversationProfileId>")
		return
	}

	requestID := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     requestIDCookie,
		Value:    requestID,
		Path:     "/",
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteNoneMode,
	})

	encoded, err := h.guard.Encode(state.State{
		ConversationProfile: conversationProfile,
		Features:            features,
		RequestIDHash:       h.guard.Bind(requestID),
	})
	if err != nil {
		logger.Errorw("failed to encode login state", "error", err)
		writeText(w, http.StatusInternalServerError, "Could not start authentication flow.")
		return
	}

	http.Redirect(w, r, h.oauth.AuthorizationURL(encoded), http.StatusFound)
}

// home lands the IdP's redirect. The state blob is challenged against the
// request ID cookie before anything in it is trusted; a valid landing
// either hands the authorization code to the UI or bounces the browser
// back to the auth entry point to retry.
func (h *flowRoutes) home(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(requestIDCookie)
	if err != nil {
		writeText(w, http.StatusBadRequest,
			"Missing request ID cookie. Please restart the authentication flow from the application.")
		return
	}

	loginState, err := h.guard.Challenge(r.URL.Query().Get("state"), cookie.Value)
	if err != nil {
		logger.Warnw("state challenge failed", "error", err)
		writeText(w, http.StatusInternalServerError,
			"Sign in failed. Please close this window and try again.")
		return
	}

	entryPoint := h.authEntryPoint(loginState)

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		logger.Warnw("authorization denied by identity provider", "error", errParam)
		http.Redirect(w, r, entryPoint, http.StatusFound)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Redirect(w, r, entryPoint, http.StatusFound)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"conversationProfile": loginState.ConversationProfile,
		"features":            loginState.Features,
		"code":                code,
	})
}

// authEntryPoint rebuilds the application URL that restarts the flow with
// the same parameters.
func (h *flowRoutes) authEntryPoint(s state.State) string {
	params := url.Values{
		"conversationProfile": {s.ConversationProfile},
		"features":            {s.Features},
	}
	return h.appURL + "?" + params.Encode()
}

func writeText(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintln(w, message)
}
