package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signToken(t *testing.T, secret []byte, claimSet jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claimSet)
	signed, err := token.SignedString(secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestStaticVerifierAcceptsValidToken(t *testing.T) {
	secret := []byte("secret")
	signed := signToken(t, secret, jwt.MapClaims{
		"sub":   "auth0|abc123",
		"email": "avery@example.com",
		"name":  "Avery",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	identity, err := NewStaticVerifier(secret, "", "").Verify(signed)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if identity.Subject != "auth0|abc123" || identity.Email != "avery@example.com" || identity.Name != "Avery" {
		t.Fatalf("unexpected identity: %+v", identity)
	}
}

func TestStaticVerifierRejectsExpiredToken(t *testing.T) {
	secret := []byte("secret")
	signed := signToken(t, secret, jwt.MapClaims{
		"sub": "auth0|abc123",
		"exp": time.Now().Add(-time.Minute).Unix(),
	})

	if _, err := NewStaticVerifier(secret, "", "").Verify(signed); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestStaticVerifierRejectsWrongSecret(t *testing.T) {
	signed := signToken(t, []byte("secret-a"), jwt.MapClaims{
		"sub": "auth0|abc123",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	if _, err := NewStaticVerifier([]byte("secret-b"), "", "").Verify(signed); err == nil {
		t.Fatal("expected token signed with another secret to be rejected")
	}
}

func TestStaticVerifierRejectsMissingSubject(t *testing.T) {
	secret := []byte("secret")
	signed := signToken(t, secret, jwt.MapClaims{
		"email": "avery@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	if _, err := NewStaticVerifier(secret, "", "").Verify(signed); err == nil {
		t.Fatal("expected token without sub to be rejected")
	}
}

func TestStaticVerifierEnforcesIssuer(t *testing.T) {
	secret := []byte("secret")
	signed := signToken(t, secret, jwt.MapClaims{
		"sub": "auth0|abc123",
		"iss": "https://other.example.com/",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	if _, err := NewStaticVerifier(secret, "https://idp.example.com/", "").Verify(signed); err == nil {
		t.Fatal("expected token with wrong issuer to be rejected")
	}
}
