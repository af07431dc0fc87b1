// Package token generates opaque download credentials.
package token

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
)

// tokenBytes is the entropy per token. 32 bytes keeps tokens unguessable and
// independent of any order or item identifier.
const tokenBytes = 32

// NewDownloadToken returns a fresh URL-safe download token.
func NewDownloadToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
