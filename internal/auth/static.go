// ABOUTME: Static bearer tokens checked against configured bcrypt hashes
// ABOUTME: Also provides token generation and a verifier that tries several in turn

package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// tokenBytes is the entropy of a generated token.
const tokenBytes = 32

// GenerateToken returns a new random token as 64 hex characters.
func GenerateToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// HashToken returns the bcrypt hash to put in server.token_hashes.
func HashToken(token string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing token: %w", err)
	}
	return string(hash), nil
}

// StaticTokenVerifier accepts tokens whose bcrypt hash is configured. The
// subject is "static:<n>" where n is the 1-based position of the hash.
type StaticTokenVerifier struct {
	hashes [][]byte
}

// NewStaticTokenVerifier validates every hash up front.
func NewStaticTokenVerifier(hashes []string) (*StaticTokenVerifier, error) {
	v := &StaticTokenVerifier{hashes: make([][]byte, len(hashes))}
	for i, h := range hashes {
		if _, err := bcrypt.Cost([]byte(h)); err != nil {
			return nil, fmt.Errorf("token hash %d: %w", i+1, err)
		}
		v.hashes[i] = []byte(h)
	}
	return v, nil
}

// Verify implements TokenVerifier.
func (v *StaticTokenVerifier) Verify(token string) (string, error) {
	if token == "" {
		return "", ErrInvalidToken
	}
	for i, h := range v.hashes {
		if bcrypt.CompareHashAndPassword(h, []byte(token)) == nil {
			return fmt.Sprintf("static:%d", i+1), nil
		}
	}
	return "", ErrInvalidToken
}

// ChainVerifier tries each verifier in order and returns the first success.
type ChainVerifier []TokenVerifier

// Verify implements TokenVerifier. An expired JWT is reported as expired
// when no later verifier accepts the token.
func (c ChainVerifier) Verify(token string) (string, error) {
	err := ErrInvalidToken
	for _, v := range c {
		if v == nil {
			continue
		}
		subject, verr := v.Verify(token)
		if verr == nil {
			return subject, nil
		}
		if errors.Is(verr, ErrExpiredToken) {
			err = verr
		}
	}
	return "", err
}
