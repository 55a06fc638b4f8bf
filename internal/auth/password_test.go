package auth

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashAndCompare(t *testing.T) {
	Cost = bcrypt.MinCost
	t.Cleanup(func() { Cost = bcrypt.DefaultCost })

	hash, err := HashPassword("secret")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "secret" {
		t.Fatal("hash equals plaintext")
	}
	if !ComparePassword(hash, "secret") {
		t.Error("correct password rejected")
	}
	if ComparePassword(hash, "Secret") {
		t.Error("wrong password accepted")
	}

	again, err := HashPassword("secret")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if again == hash {
		t.Error("hashes should be salted")
	}
}

func TestHashPasswordTooLong(t *testing.T) {
	if _, err := HashPassword(strings.Repeat("a", MaxPasswordBytes+1)); !errors.Is(err, ErrPasswordTooLong) {
		t.Errorf("err = %v, want ErrPasswordTooLong", err)
	}
}

func TestCompareEmptyHash(t *testing.T) {
	if ComparePassword("", "tasklist-placeholder") {
		t.Error("empty hash must never match")
	}
}

func TestSessionToken(t *testing.T) {
	a, b := NewSessionToken(), NewSessionToken()
	if a == b {
		t.Fatal("tokens repeated")
	}
	if len(a) != 64 || strings.Contains(a, "-") {
		t.Errorf("unexpected token shape %q", a)
	}
	if TokenDigest(a) == a || TokenDigest(a) != TokenDigest(a) {
		t.Error("digest should be stable and differ from the token")
	}
}
