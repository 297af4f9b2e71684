package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/agent-assist/ui-proxy/pkg/logger"
)

// maxBodySize bounds request and response bodies relayed through the gateway.
const maxBodySize = 10 * 1024 * 1024 // 10MB

// httpTimeout is the timeout for forwarded upstream requests.
const httpTimeout = 30 * time.Second

// HTTPClient abstracts the HTTP client so tests can substitute a double.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Forwarder relays REST calls to the regionally resolved upstream endpoint
// using machine credentials.
type Forwarder struct {
	baseHost    string
	credentials *ServiceCredentials
	httpClient  HTTPClient
}

// ForwarderOption configures a Forwarder.
type ForwarderOption func(*Forwarder)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client HTTPClient) ForwarderOption {
	return func(f *Forwarder) {
		f.httpClient = client
	}
}

// NewForwarder creates a Forwarder targeting the given base API host.
func NewForwarder(baseHost string, credentials *ServiceCredentials, opts ...ForwarderOption) (*Forwarder, error) {
	if baseHost == "" {
		return nil, errors.New("base host is required")
	}
	if credentials == nil {
		return nil, errors.New("service credentials are required")
	}

	f := &Forwarder{
		baseHost:    baseHost,
		credentials: credentials,
		httpClient:  &http.Client{Timeout: httpTimeout},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// TargetURL resolves the full upstream URL for a request path.
func (f *Forwarder) TargetURL(path string) string {
	location := ResolveLocation(path)
	return "https://" + ResolveHost(location, f.baseHost) + path
}

// ServeHTTP relays the inbound request to the regional upstream endpoint
// and writes the upstream status and body back unchanged.
func (f *Forwarder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token, err := f.credentials.Token()
	if err != nil {
		logger.Errorw("failed to obtain service credentials", "error", err)
		writeError(w, http.StatusInternalServerError, "could not authenticate to upstream API")
		return
	}

	target := f.TargetURL(r.URL.RequestURI())

	body := http.MaxBytesReader(w, r.Body, maxBodySize)
	req, err := http.NewRequestWithContext(r.Context(), r.Method, target, body)
	if err != nil {
		logger.Errorw("failed to build upstream request", "error", err)
		writeError(w, http.StatusInternalServerError, "could not forward request")
		return
	}
	req.Header.Set("Content-Type", "application/json")
	token.SetAuthHeader(req)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		logger.Errorw("upstream request failed", "target", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "upstream request failed")
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, io.LimitReader(resp.Body, maxBodySize)); err != nil {
		// Status and headers are already on the wire; nothing to do but log.
		logger.Warnw("failed to relay upstream response body", "error", err)
	}
}

// writeError writes a JSON error payload.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		logger.Warnw("failed to write error response", "error", err)
	}
}
