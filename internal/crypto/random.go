package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// NonceBytes is the entropy carried by every state nonce
const NonceBytes = 16

// GenerateSecureToken creates a cryptographically secure random token.
// Returns a base64 URL-encoded string suitable for secrets and identifiers.
func GenerateSecureToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// GenerateNonce returns NonceBytes of randomness as lowercase hex
func GenerateNonce() (string, error) {
	b := make([]byte, NonceBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return hex.EncodeToString(b), nil
}
