package auth

import (
	"errors"
	"strings"
	"testing"
)

func TestHashAndComparePassword(t *testing.T) {
	hash, err := HashPassword("secret123")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$") {
		t.Fatalf("unexpected hash format: %q", hash)
	}

	if err := ComparePassword(hash, "secret123"); err != nil {
		t.Fatalf("matching password rejected: %v", err)
	}
	if err := ComparePassword(hash, "wrong"); !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("expected ErrPasswordMismatch, got %v", err)
	}
}

func TestHashPasswordSaltsDiffer(t *testing.T) {
	first, err := HashPassword("secret123")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	second, err := HashPassword("secret123")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if first == second {
		t.Fatal("two hashes of the same password must differ")
	}
}

func TestComparePasswordRejectsMalformedHash(t *testing.T) {
	if err := ComparePassword("not-a-hash", "secret123"); err == nil {
		t.Fatal("malformed hash must not verify")
	}
}
