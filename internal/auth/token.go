package auth

import (
	"crypto/rand"
	"encoding/base64"
)

// GenerateRandomToken creates a cryptographically secure random token.
// Used for single-use tokens (password reset, email verification) whose
// validity depends entirely on a server-side lookup.
func GenerateRandomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
