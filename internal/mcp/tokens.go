// ABOUTME: Launch token store for path-token access to the MCP endpoint.
// ABOUTME: Tokens are minted at startup and accepted as /mcp/<token> or ?token=<token>.

package mcp

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrUnknownToken is returned by Verify for tokens the store never issued.
var ErrUnknownToken = errors.New("unknown launch token")

// TokenStore manages launch tokens and the label each was issued for.
// Tokens live until invalidated or the process exits.
type TokenStore struct {
	mu     sync.RWMutex
	tokens map[string]string // token -> label
}

// NewTokenStore creates a new token store.
func NewTokenStore() *TokenStore {
	return &TokenStore{
		tokens: make(map[string]string),
	}
}

// CreateToken generates a new token for label.
// Returns the token string that should be included in MCP URLs.
func (s *TokenStore) CreateToken(label string) string {
	token := uuid.New().String()

	s.mu.Lock()
	s.tokens[token] = label
	s.mu.Unlock()

	return token
}

// Label returns the label a token was issued for.
func (s *TokenStore) Label(token string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	label, ok := s.tokens[token]
	return label, ok
}

// Verify implements auth.TokenVerifier. The subject is "launch:<label>".
func (s *TokenStore) Verify(token string) (string, error) {
	label, ok := s.Label(token)
	if !ok {
		return "", ErrUnknownToken
	}
	return "launch:" + label, nil
}

// InvalidateToken removes a token from the store.
func (s *TokenStore) InvalidateToken(token string) {
	s.mu.Lock()
	delete(s.tokens, token)
	s.mu.Unlock()
}

// TokenCount returns the number of active tokens (for monitoring).
func (s *TokenStore) TokenCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tokens)
}
