// Package tokens mints and verifies the proxy server's own credentials.
//
// Proxy tokens are short-lived HS256 JWTs with a kind discriminator. An
// access token proves the bearer completed the OAuth flow and carries no
// secret material. A refresh token additionally embeds the encrypted
// upstream refresh token, which the proxy uses to mint fresh pairs.
package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Kind discriminates the two proxy token variants.
type Kind string

const (
	// KindAccess marks a token that grants access to the gateway.
	KindAccess Kind = "access"
	// KindRefresh marks a token redeemable for a fresh token pair.
	KindRefresh Kind = "refresh"
)

// tokenTTL is the fixed lifetime of both proxy token kinds.
const tokenTTL = time.Hour

// Common errors.
var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrTokenExpired     = errors.New("token expired")
	ErrWrongKind        = errors.New("wrong token kind")
	ErrMalformedPayload = errors.New("malformed token payload")
)

// Claims is the payload carried by every proxy token.
type Claims struct {
	jwt.RegisteredClaims

	// Kind discriminates access tokens from refresh tokens. It is checked
	// at every verification boundary.
	Kind Kind `json:"kind"`

	// SealedRefreshToken holds the encrypted upstream refresh token.
	// Only ever set on refresh-kind tokens, and only ever ciphertext.
	SealedRefreshToken string `json:"token,omitempty"`
}

// Issuer mints and verifies proxy tokens with a process-wide signing secret.
type Issuer struct {
	signingSecret []byte
	now           func() time.Time
}

// IssuerOption configures an Issuer.
type IssuerOption func(*Issuer)

// WithClock overrides the issuer's time source. Intended for tests.
func WithClock(now func() time.Time) IssuerOption {
	return func(i *Issuer) {
		i.now = now
	}
}

// NewIssuer creates an Issuer signing with the given secret.
func NewIssuer(signingSecret string, opts ...IssuerOption) (*Issuer, error) {
	if signingSecret == "" {
		return nil, errors.New("signing secret is required")
	}

	i := &Issuer{
		signingSecret: []byte(signingSecret),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// IssueAccess mints a one-hour access token for the proxy server.
func (i *Issuer) IssueAccess() (string, error) {
	return i.sign(Claims{Kind: KindAccess})
}

// IssueRefresh mints a one-hour refresh token embedding the encrypted
// upstream refresh token. The value must already be ciphertext; this
// package never sees the plaintext upstream token.
func (i *Issuer) IssueRefresh(sealedRefreshToken string) (string, error) {
	if sealedRefreshToken == "" {
		return "", errors.New("sealed refresh token is required")
	}
	return i.sign(Claims{
		Kind:               KindRefresh,
		SealedRefreshToken: sealedRefreshToken,
	})
}

func (i *Issuer) sign(claims Claims) (string, error) {
	now := i.now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(tokenTTL))

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.signingSecret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// VerifyAccess verifies a proxy token and requires it to be access-kind.
func (i *Issuer) VerifyAccess(token string) error {
	_, err := i.verify(token, KindAccess)
	return err
}

// VerifyRefresh verifies a proxy token, requires it to be refresh-kind, and
// returns the embedded encrypted upstream refresh token.
func (i *Issuer) VerifyRefresh(token string) (string, error) {
	claims, err := i.verify(token, KindRefresh)
	if err != nil {
		return "", err
	}
	if claims.SealedRefreshToken == "" {
		return "", ErrMalformedPayload
	}
	return claims.SealedRefreshToken, nil
}

// verify parses and validates a proxy token, rejecting tokens whose kind
// does not match the calling context. Expiry is checked locally here, so a
// stale refresh token never triggers an upstream call.
func (i *Issuer) verify(token string, want Kind) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return i.signingSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
	)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenMalformed):
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	default:
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.Kind != want {
		return nil, ErrWrongKind
	}
	return claims, nil
}
