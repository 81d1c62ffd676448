// Package security holds the primitives used to authenticate callers and
// mint download links.
package security

import (
	"crypto/rand"
	"encoding/hex"
)

// GenerateToken returns n random bytes encoded as 2n hex characters.
func GenerateToken(n int) (string, error) {
	b := make([]byte, n)

	_, err := rand.Read(b)
	if err != nil {
		return "", err
	}

	return hex.EncodeToString(b), nil
}

// IsToken reports whether s looks like a token produced by GenerateToken(n).
func IsToken(s string, n int) bool {
	if len(s) != n*2 {
		return false
	}

	_, err := hex.DecodeString(s)
	return err == nil
}
