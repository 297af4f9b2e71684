package secret

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSealerRequiresPhrase(t *testing.T) {
	t.Parallel()

	_, err := NewSealer("")
	require.Error(t, err)
}

func TestSealOpenRoundTrip(t *testing.T) {
	t.Parallel()

	sealer, err := NewSealer("correct horse battery staple")
	require.NoError(t, err)

	plaintexts := []string{
		"a",
		"refresh-token-value",
		"longer refresh token with spaces and symbols !@#$%^&*()_+-=[]{}",
		`{"nested":"json","n":42}`,
	}

	for _, plaintext := range plaintexts {
		sealed, err := sealer.Seal(plaintext)
		require.NoError(t, err)
		assert.NotEqual(t, plaintext, sealed)

		opened, err := sealer.Open(sealed)
		require.NoError(t, err)
		assert.Equal(t, plaintext, opened)
	}
}

func TestSealUsesRandomNonce(t *testing.T) {
	t.Parallel()

	sealer, err := NewSealer("phrase")
	require.NoError(t, err)

	first, err := sealer.Seal("same plaintext")
	require.NoError(t, err)
	second, err := sealer.Seal("same plaintext")
	require.NoError(t, err)

	// Identical plaintexts must not produce identical ciphertexts.
	assert.NotEqual(t, first, second)
}

func TestOpenRejectsMalformedInput(t *testing.T) {
	t.Parallel()

	sealer, err := NewSealer("phrase")
	require.NoError(t, err)

	tests := []struct {
		name   string
		sealed string
	}{
		{"not hex", "zzzz-not-hex"},
		{"too short", "abcd"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := sealer.Open(tt.sealed)
			require.ErrorIs(t, err, ErrMalformedCiphertext)
		})
	}
}

func TestOpenRejectsWrongKey(t *testing.T) {
	t.Parallel()

	sealer, err := NewSealer("phrase one")
	require.NoError(t, err)
	other, err := NewSealer("phrase two")
	require.NoError(t, err)

	sealed, err := sealer.Seal("secret")
	require.NoError(t, err)

	_, err = other.Open(sealed)
	require.ErrorIs(t, err, ErrDecrypt)
}

func TestOpenRejectsTamperedCiphertext(t *testing.T) {
	t.Parallel()

	sealer, err := NewSealer("phrase")
	require.NoError(t, err)

	sealed, err := sealer.Seal("secret")
	require.NoError(t, err)

	// Flip one hex digit at the end of the payload.
	tampered := []byte(sealed)
	if tampered[len(tampered)-1] == 'a' {
		tampered[len(tampered)-1] = 'b'
	} else {
		tampered[len(tampered)-1] = 'a'
	}

	_, err = sealer.Open(string(tampered))
	require.ErrorIs(t, err, ErrDecrypt)
}
