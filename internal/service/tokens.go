package service

import (
	"crypto/rand"
	"encoding/base64"
)

const (
	verificationTokenBytes = 32
	downloadTokenBytes     = 64
)

// generateToken returns n bytes from crypto/rand as unpadded base64url.
func generateToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
