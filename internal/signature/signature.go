// Package signature implements the message authentication scheme shared by
// outbound deliveries and the inbound receiver.
//
// A subscription's secret is generated once and returned to the caller a
// single time. Both sides derive the HMAC signing key as the SHA-256 hex
// digest of that plaintext; the server stores only the digest.
package signature

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Header carries the hex HMAC-SHA256 of the exact request body.
const Header = "X-Webhook-Signature"

// NewSecret generates a subscription secret. The returned plaintext is
// surfaced exactly once, in the creation response.
func NewSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating secret: %w", err)
	}
	return "whsec_" + hex.EncodeToString(buf), nil
}

// DeriveKey returns the signing key for a secret: its SHA-256 hex digest.
// This is the value stored server-side in place of the plaintext.
func DeriveKey(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// Sign returns the lowercase hex HMAC-SHA256 of body keyed by key.
func Sign(body []byte, key string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a supplied hex signature against body using a constant-time
// comparison. Malformed hex fails verification.
func Verify(body []byte, key, provided string) bool {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write(body)
	expected := mac.Sum(nil)

	got, err := hex.DecodeString(provided)
	if err != nil {
		return false
	}
	return hmac.Equal(expected, got)
}
