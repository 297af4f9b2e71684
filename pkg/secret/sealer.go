// Package secret seals the upstream refresh token so it can ride inside a
// signed proxy token without exposing it to the browser.
package secret

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

// Sentinel errors returned by Open. Callers must not distinguish them when
// reporting to clients; a decrypt failure looks the same as any other
// refresh failure at the API boundary.
var (
	// ErrMalformedCiphertext means the sealed value is not valid hex or is
	// too short to contain a nonce.
	ErrMalformedCiphertext = errors.New("malformed ciphertext")

	// ErrDecrypt means authentication of the ciphertext failed, typically a
	// wrong key or a tampered payload.
	ErrDecrypt = errors.New("decryption failed")
)

// Sealer seals and opens secrets using AES-256-GCM. The key is derived once
// from a secret phrase; a random nonce is generated per message, so sealing
// the same plaintext twice yields different ciphertexts.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer derives an AES-256 key as SHA-256(secretPhrase) and builds a
// GCM sealer from it.
func NewSealer(secretPhrase string) (*Sealer, error) {
	if secretPhrase == "" {
		return nil, errors.New("secret phrase is required")
	}

	key := sha256.Sum256([]byte(secretPhrase))

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("new gcm: %w", err)
	}
	return &Sealer{aead: aead}, nil
}

// Seal encrypts one plaintext value and returns a hex-encoded payload of
// nonce || ciphertext.
func (s *Sealer) Seal(value string) (string, error) {
	if s == nil || s.aead == nil {
		return "", errors.New("sealer is not configured")
	}

	// AES-GCM requires a unique nonce per encryption under the same key.
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("read nonce: %w", err)
	}

	ciphertext := s.aead.Seal(nil, nonce, []byte(value), nil)
	return hex.EncodeToString(append(nonce, ciphertext...)), nil
}

// Open decrypts one previously sealed value.
func (s *Sealer) Open(sealed string) (string, error) {
	if s == nil || s.aead == nil {
		return "", errors.New("sealer is not configured")
	}

	payload, err := hex.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedCiphertext, err)
	}

	nonceSize := s.aead.NonceSize()
	if len(payload) < nonceSize {
		return "", fmt.Errorf("%w: payload too short", ErrMalformedCiphertext)
	}
	// Payload format is nonce || ciphertext.
	nonce := payload[:nonceSize]
	ciphertext := payload[nonceSize:]
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrDecrypt
	}
	return string(plaintext), nil
}
