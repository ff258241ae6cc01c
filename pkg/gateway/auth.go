package gateway

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// Handshake messages exchanged over the WebSocket when a shared secret is
// configured. The server opens with a challenge; the client answers with
// the hex HMAC-SHA256 of the challenge keyed by the secret.
const (
	EventAuthChallenge = "auth.challenge"
	EventAuthSuccess   = "auth.success"
	EventAuthFailure   = "auth.failure"
	MethodAuthResponse = "auth.response"

	// SecretHeader carries the shared secret on /rpc requests.
	SecretHeader = "X-MCP-Standards-Secret"

	maxAuthAttempts = 3
	challengeBytes  = 32
)

type authenticator struct {
	secret []byte
}

func newAuthenticator(secret string) authenticator {
	if secret == "" {
		return authenticator{}
	}
	return authenticator{secret: []byte(secret)}
}

// required reports whether clients must prove they know the secret.
func (a authenticator) required() bool { return len(a.secret) > 0 }

func newChallenge() (string, error) {
	buf := make([]byte, challengeBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate challenge: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// SignChallenge returns the hex HMAC-SHA256 of challenge under secret.
func SignChallenge(secret, challenge string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(challenge))
	return hex.EncodeToString(mac.Sum(nil))
}

func (a authenticator) validSignature(challenge, signature string) bool {
	want := SignChallenge(string(a.secret), challenge)
	return hmac.Equal([]byte(want), []byte(signature))
}

// validSecret checks a secret presented in a header. Anything passes when
// no secret is configured.
func (a authenticator) validSecret(presented string) bool {
	if !a.required() {
		return true
	}
	return subtle.ConstantTimeCompare(a.secret, []byte(presented)) == 1
}

// answer applies a client's signature to the session's pending challenge.
// A challenge is single use; after maxAuthAttempts failures the caller
// should drop the connection.
func (a authenticator) answer(s *session, signature string) AuthResult {
	fail := func(msg string) AuthResult {
		return AuthResult{Event: EventAuthFailure, Message: msg}
	}

	switch {
	case s.challenge == "":
		return fail("No challenge found")
	case !a.validSignature(s.challenge, signature):
		s.failures++
		if s.failures >= maxAuthAttempts {
			return fail("Too many failed attempts")
		}
		return fail("Invalid signature")
	}

	s.challenge = ""
	s.failures = 0
	s.authed.Store(true)
	return AuthResult{Event: EventAuthSuccess, Success: true}
}
