// ABOUTME: Unit tests for JWT token verification and generation
// ABOUTME: Tests valid, invalid, expired and weak-secret cases

package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// testSecret is exactly MinSecretLength bytes.
var testSecret = []byte("test-secret-key-for-jwt-sign-32b")

func newTestJWTVerifier(t *testing.T) *JWTVerifier {
	t.Helper()
	v, err := NewJWTVerifier(testSecret)
	if err != nil {
		t.Fatalf("NewJWTVerifier() error = %v", err)
	}
	return v
}

func TestNewJWTVerifier_RejectsShortSecret(t *testing.T) {
	_, err := NewJWTVerifier([]byte("short"))
	if !errors.Is(err, ErrWeakSecret) {
		t.Errorf("NewJWTVerifier() error = %v, want ErrWeakSecret", err)
	}
}

func TestJWTVerifier_MissingSubject(t *testing.T) {
	verifier := newTestJWTVerifier(t)

	token, err := verifier.Generate("", time.Hour)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if _, err := verifier.Verify(token); !errors.Is(err, ErrMissingClaim) {
		t.Errorf("Verify() error = %v, want ErrMissingClaim", err)
	}
}

func TestJWTVerifier_ValidToken(t *testing.T) {
	verifier := newTestJWTVerifier(t)

	subject := "user-123"
	token, err := verifier.Generate(subject, time.Hour)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	gotID, err := verifier.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}

	if gotID != subject {
		t.Errorf("Verify() = %q, want %q", gotID, subject)
	}
}

func TestJWTVerifier_InvalidToken(t *testing.T) {
	verifier := newTestJWTVerifier(t)

	tests := []struct {
		name  string
		token string
	}{
		{
			name:  "empty token",
			token: "",
		},
		{
			name:  "garbage token",
			token: "not-a-jwt-token",
		},
		{
			name:  "malformed JWT",
			token: "header.payload.signature",
		},
		{
			name: "wrong secret",
			token: func() string {
				// Generate with different secret
				otherVerifier, _ := NewJWTVerifier([]byte("a-completely-different-secret-32b"))
				token, _ := otherVerifier.Generate("user-123", time.Hour)
				return token
			}(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := verifier.Verify(tt.token)
			if err == nil {
				t.Error("Verify() should have returned an error")
			}

			if !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Verify() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestJWTVerifier_ExpiredToken(t *testing.T) {
	verifier := newTestJWTVerifier(t)

	// Generate a token that expired 1 hour ago
	token, err := verifier.Generate("user-123", -time.Hour)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	_, err = verifier.Verify(token)
	if err == nil {
		t.Error("Verify() should have returned an error for expired token")
	}

	if !errors.Is(err, ErrExpiredToken) {
		t.Errorf("Verify() error = %v, want ErrExpiredToken", err)
	}
}

func TestJWTVerifier_Generate_CreatesValidToken(t *testing.T) {
	verifier := newTestJWTVerifier(t)

	subject := "user-456"
	expiresIn := 5 * time.Minute

	token, err := verifier.Generate(subject, expiresIn)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if token == "" {
		t.Error("Generate() returned empty token")
	}

	// Token should be verifiable
	gotID, err := verifier.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}

	if gotID != subject {
		t.Errorf("Verify() = %q, want %q", gotID, subject)
	}
}

func TestJWTVerifier_DifferentSubjects(t *testing.T) {
	verifier := newTestJWTVerifier(t)

	subjects := []string{"user-1", "user-2", "static:3"}

	for _, subject := range subjects {
		token, err := verifier.Generate(subject, time.Hour)
		if err != nil {
			t.Fatalf("Generate(%q) error = %v", subject, err)
		}

		gotID, err := verifier.Verify(token)
		if err != nil {
			t.Fatalf("Verify() error = %v", err)
		}

		if gotID != subject {
			t.Errorf("Verify() = %q, want %q", gotID, subject)
		}
	}
}

// signClaims signs arbitrary claims with the test secret.
func signClaims(t *testing.T, method jwt.SigningMethod, claims jwt.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(testSecret)
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	return token
}

func TestJWTVerifier_RejectsForeignTokens(t *testing.T) {
	verifier := newTestJWTVerifier(t)
	exp := jwt.NewNumericDate(time.Now().Add(time.Hour))

	tests := []struct {
		name  string
		token string
	}{
		{"other issuer", signClaims(t, jwt.SigningMethodHS256, jwt.RegisteredClaims{Issuer: "someone-else", Subject: "u", ExpiresAt: exp})},
		{"no issuer", signClaims(t, jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "u", ExpiresAt: exp})},
		{"no expiry", signClaims(t, jwt.SigningMethodHS256, jwt.RegisteredClaims{Issuer: Issuer, Subject: "u"})},
		{"HS512", signClaims(t, jwt.SigningMethodHS512, jwt.RegisteredClaims{Issuer: Issuer, Subject: "u", ExpiresAt: exp})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := verifier.Verify(tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Verify() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}
