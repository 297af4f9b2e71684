// Package state binds the OAuth state parameter to a browser-held request ID
// so forged or replayed authorization redirects can be detected.
//
// The server issues a random requestId cookie before redirecting to the IdP
// and embeds HMAC(secret, requestId) in the state blob. On the way back, the
// hash in the returned state must match the HMAC of the cookie value. An
// attacker who fabricates a state value cannot produce a matching hash
// without the cookie, which only travels same-origin.
package state

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrMalformedState = errors.New("malformed state")
	ErrMissingField   = errors.New("state is missing a required field")
	ErrStateMismatch  = errors.New("state does not match request cookie")
)

// State is the payload round-tripped through the IdP's state parameter.
type State struct {
	// ConversationProfile is the full conversation profile resource name.
	ConversationProfile string `json:"conversationProfile"`

	// Features is the comma-separated feature list for the UI modules.
	Features string `json:"features"`

	// RequestIDHash is HMAC(serverSecret, requestId) where requestId lives
	// only in the browser's cookie jar. Never the requestId itself.
	RequestIDHash string `json:"requestIdHash"`
}

// Guard binds and challenges OAuth state values with a server-held secret.
type Guard struct {
	secret []byte
}

// NewGuard creates a Guard keyed with the given secret.
func NewGuard(secret string) (*Guard, error) {
	if secret == "" {
		return nil, errors.New("state secret is required")
	}
	return &Guard{secret: []byte(secret)}, nil
}

// Bind returns the keyed hash of a request ID for embedding in a state blob.
func (g *Guard) Bind(requestID string) string {
	mac := hmac.New(sha256.New, g.secret)
	mac.Write([]byte(requestID))
	return hex.EncodeToString(mac.Sum(nil))
}

// Encode serializes a state payload for the IdP's state parameter.
func (g *Guard) Encode(st State) (string, error) {
	raw, err := json.Marshal(st)
	if err != nil {
		return "", fmt.Errorf("encoding state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// Challenge decodes a state blob and validates it against the request ID
// held in the caller's cookie. It fails when the blob is not valid
// structured data, when required fields are absent, or when the embedded
// hash does not match Bind(cookieRequestID).
func (g *Guard) Challenge(encoded, cookieRequestID string) (State, error) {
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return State{}, fmt.Errorf("%w: %v", ErrMalformedState, err)
	}

	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		return State{}, fmt.Errorf("%w: %v", ErrMalformedState, err)
	}

	if st.ConversationProfile == "" {
		return State{}, fmt.Errorf("%w: conversationProfile", ErrMissingField)
	}
	if st.Features == "" {
		return State{}, fmt.Errorf("%w: features", ErrMissingField)
	}

	want := g.Bind(cookieRequestID)
	if !hmac.Equal([]byte(st.RequestIDHash), []byte(want)) {
		return State{}, ErrStateMismatch
	}

	return st, nil
}
