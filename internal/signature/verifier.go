// Package signature authenticates gateway notifications with an HMAC-SHA256
// computed over the raw request body.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// Header carries the hex signature on inbound notifications.
const Header = "X-Token"

var (
	ErrSecretNotConfigured = errors.New("signature: shared secret is not configured")
	ErrMissingSignature    = errors.New("signature: missing signature")
	ErrInvalidSignature    = errors.New("signature: invalid signature")
)

// Sign returns the lowercase hex HMAC-SHA256 of body.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether received is the HMAC of body under secret.
// The body must be the bytes read off the wire, before any decoding.
func Verify(body []byte, received, secret string) bool {
	if secret == "" || received == "" {
		return false
	}
	expected := Sign(body, secret)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(received))))
}

// Verifier binds Verify to a configured secret.
type Verifier struct {
	secret string
}

func NewVerifier(secret string) (*Verifier, error) {
	if secret == "" {
		return nil, ErrSecretNotConfigured
	}
	return &Verifier{secret: secret}, nil
}

// Check distinguishes a missing signature from a wrong one.
func (v *Verifier) Check(body []byte, received string) error {
	if strings.TrimSpace(received) == "" {
		return ErrMissingSignature
	}
	if !Verify(body, received, v.secret) {
		return ErrInvalidSignature
	}
	return nil
}
