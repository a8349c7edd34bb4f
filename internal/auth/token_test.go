package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
)

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken(42)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	userID, err := ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if userID != 42 {
		t.Errorf("Expected user id 42, got %d", userID)
	}
}

func TestValidateTokenExpired(t *testing.T) {
	oldTTL := TokenTTL
	TokenTTL = -time.Minute
	defer func() { TokenTTL = oldTTL }()

	token, err := GenerateToken(7)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	if _, err := ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestValidateTokenMalformed(t *testing.T) {
	cases := []string{"", "garbage", "a.b.c"}
	for _, c := range cases {
		if _, err := ValidateToken(c); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Expected ErrInvalidToken for %q, got %v", c, err)
		}
	}
}

func TestValidateTokenWrongSecret(t *testing.T) {
	token, err := GenerateToken(7)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	oldSecret := Secret
	Secret = []byte("a-different-secret")
	defer func() { Secret = oldSecret }()

	if _, err := ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken for forged token, got %v", err)
	}
}

func TestTwoFactorSecret(t *testing.T) {
	secret, err := GenerateTwoFactorSecret("alice")
	if err != nil {
		t.Fatalf("GenerateTwoFactorSecret failed: %v", err)
	}
	if secret.Secret == "" || secret.OtpauthURL == "" {
		t.Error("Expected non-empty secret and otpauth URL")
	}

	code, err := totp.GenerateCode(secret.Secret, time.Now())
	if err != nil {
		t.Fatalf("GenerateCode failed: %v", err)
	}
	if !VerifyTwoFactorCode(code, secret.Secret) {
		t.Error("Expected current code to validate")
	}

	other, err := GenerateTwoFactorSecret("bob")
	if err != nil {
		t.Fatalf("GenerateTwoFactorSecret failed: %v", err)
	}
	if VerifyTwoFactorCode(code, other.Secret) {
		t.Error("Code for one secret should not validate against another")
	}
}
