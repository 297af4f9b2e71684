package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/agent-assist/ui-proxy/pkg/logger"
	"github.com/agent-assist/ui-proxy/pkg/tokens"
)

// CORS restricts cross-origin access to the configured application server
// origin and answers preflight requests.
func CORS(origin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Max-Age", "86400") // 24 hours

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireAccessToken authenticates the caller with a bearer proxy token of
// access kind. Requests without a valid token get a 401 in the upstream
// API's error envelope shape.
func RequireAccessToken(issuer *tokens.Issuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if token == "" {
				writeAuthFailure(w)
				return
			}
			if err := issuer.VerifyAccess(token); err != nil {
				logger.Debugw("rejected gateway request", "error", err)
				writeAuthFailure(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeAuthFailure(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":    http.StatusUnauthorized,
			"message": "Could not authenticate user",
		},
	})
}
