package token

import (
	"strings"
	"testing"
)

func TestNewDownloadTokenIsURLSafe(t *testing.T) {
	t.Parallel()

	tok, err := NewDownloadToken()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tok == "" {
		t.Fatal("expected non-empty token")
	}
	if strings.ContainsAny(tok, "+/=") {
		t.Fatalf("token contains non-URL-safe characters: %q", tok)
	}
}

func TestNewDownloadTokenIsUnique(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		tok, err := NewDownloadToken()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if seen[tok] {
			t.Fatalf("duplicate token generated: %q", tok)
		}
		seen[tok] = true
	}
}
