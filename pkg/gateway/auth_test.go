package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChallenge(t *testing.T) {
	a, err := newChallenge()
	require.NoError(t, err)
	b, err := newChallenge()
	require.NoError(t, err)

	assert.Len(t, a, 2*challengeBytes)
	assert.NotEqual(t, a, b)
}

func TestSignChallenge(t *testing.T) {
	// HMAC-SHA256("key", "The quick brown fox jumps over the lazy dog")
	assert.Equal(t,
		"f7bc83f430538424b13298e6aa6fb143ef4d59a14946175997479dbc2d1a3cd8",
		SignChallenge("key", "The quick brown fox jumps over the lazy dog"))
}

func TestAuthenticatorSecrets(t *testing.T) {
	open := newAuthenticator("")
	assert.False(t, open.required())
	assert.True(t, open.validSecret(""))
	assert.True(t, open.validSecret("anything"))

	locked := newAuthenticator("s3cret")
	assert.True(t, locked.required())
	assert.True(t, locked.validSecret("s3cret"))
	assert.False(t, locked.validSecret(""))
	assert.False(t, locked.validSecret("s3cret "))

	assert.True(t, locked.validSignature("abc", SignChallenge("s3cret", "abc")))
	assert.False(t, locked.validSignature("abc", SignChallenge("other", "abc")))
	assert.False(t, locked.validSignature("abc", "not-hex"))
}

func TestAuthenticatorAnswer(t *testing.T) {
	auth := newAuthenticator("test-secret")

	tests := []struct {
		name      string
		challenge string
		failures  int
		signature string
		success   bool
		message   string
	}{
		{name: "valid", challenge: "c1", signature: SignChallenge("test-secret", "c1"), success: true},
		{name: "bad signature", challenge: "c1", signature: "nope", message: "Invalid signature"},
		{name: "third failure", challenge: "c1", failures: 2, signature: "nope", message: "Too many failed attempts"},
		{name: "no challenge", signature: SignChallenge("test-secret", ""), message: "No challenge found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &session{id: "c", challenge: tt.challenge, failures: tt.failures}

			result := auth.answer(s, tt.signature)

			assert.Equal(t, tt.success, result.Success)
			assert.Equal(t, tt.success, s.authed.Load())
			if tt.success {
				assert.Equal(t, EventAuthSuccess, result.Event)
				assert.Empty(t, s.challenge, "challenge is single use")
				assert.Zero(t, s.failures)
				return
			}
			assert.Equal(t, EventAuthFailure, result.Event)
			assert.Equal(t, tt.message, result.Message)
		})
	}
}
