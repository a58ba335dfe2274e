package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// RandomToken returns n bytes of cryptographic randomness encoded as unpadded
// base64url, safe to place in a URL query without escaping.
func RandomToken(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("token length must be positive, got %d", n)
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
