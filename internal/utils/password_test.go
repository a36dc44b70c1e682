package utils

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("open sesame", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !VerifyPassword(hash, "open sesame") {
		t.Fatal("correct password rejected")
	}
	if VerifyPassword(hash, "open says me") {
		t.Fatal("wrong password accepted")
	}
	if VerifyPassword("not a bcrypt hash", "open sesame") {
		t.Fatal("garbage hash accepted")
	}
}
