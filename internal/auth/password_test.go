package auth_test

import (
	"strings"
	"testing"

	"github.com/safar/storefront/internal/auth"
	"github.com/safar/storefront/internal/config"
)

var testPasswordConfig = config.PasswordConfig{
	ArgonMemoryKB:    8 * 1024,
	ArgonTime:        1,
	ArgonParallelism: 1,
	ArgonSaltLen:     16,
	ArgonKeyLen:      32,
	MinLength:        8,
}

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := auth.HashPassword("very-secure-password", testPasswordConfig)
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Fatalf("unexpected hash format %q", hash)
	}

	ok, err := auth.VerifyPassword("very-secure-password", hash)
	if err != nil {
		t.Fatalf("VerifyPassword returned error for valid hash: %v", err)
	}
	if !ok {
		t.Fatal("VerifyPassword failed for the correct password")
	}

	ok, err = auth.VerifyPassword("bogus-password", hash)
	if err != nil {
		t.Fatalf("VerifyPassword returned error for invalid password: %v", err)
	}
	if ok {
		t.Fatal("VerifyPassword returned true for incorrect password")
	}
}

func TestHashPasswordSalts(t *testing.T) {
	a, err := auth.HashPassword("same-password", testPasswordConfig)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	b, err := auth.HashPassword("same-password", testPasswordConfig)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if a == b {
		t.Fatal("expected distinct salts per hash")
	}
}

func TestVerifyPasswordBadHash(t *testing.T) {
	for _, bad := range []string{"not-a-hash", "$argon2id$v=19$m=x,t=1,p=1$c2FsdA$aGFzaA", "$bcrypt$v=19$m=1,t=1,p=1$a$b"} {
		if _, err := auth.VerifyPassword("irrelevant", bad); err == nil {
			t.Fatalf("expected error for malformed hash %q", bad)
		}
	}
}

func TestHashPasswordEmpty(t *testing.T) {
	if _, err := auth.HashPassword("", testPasswordConfig); err == nil {
		t.Fatal("expected error for empty password")
	}
}
