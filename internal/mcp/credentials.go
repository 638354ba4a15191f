// ABOUTME: Request credential parsing and authentication for the HTTP transport
// ABOUTME: Launch tokens come from the URL; bearer tokens from the Authorization header

package mcp

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/2389/quarkdown-mcp/internal/auth"
)

// errInvalidToken means a credential was presented and rejected. Such requests
// never fall back to anonymous access.
var errInvalidToken = errors.New("invalid or expired token")

// errNoCredentials means the request carried nothing usable.
var errNoCredentials = errors.New("no credentials")

type credentialKind int

const (
	credNone credentialKind = iota
	credLaunch
	credBearer
	credMalformed // /mcp/<token>/<more>
)

type credentials struct {
	kind  credentialKind
	token string
}

// credentialsFrom picks the request's credential. The path token wins over
// the token query parameter, which wins over Authorization.
func credentialsFrom(r *http.Request) credentials {
	if rest, ok := strings.CutPrefix(r.URL.Path, "/mcp/"); ok && rest != "" {
		rest = strings.TrimRight(rest, "/")
		if strings.Contains(rest, "/") {
			return credentials{kind: credMalformed}
		}
		if rest != "" {
			return credentials{kind: credLaunch, token: rest}
		}
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return credentials{kind: credLaunch, token: token}
	}
	if token := auth.BearerToken(r); token != "" {
		return credentials{kind: credBearer, token: token}
	}
	return credentials{}
}

// authenticate resolves credentials to a subject.
func (s *Server) authenticate(c credentials) (string, error) {
	switch c.kind {
	case credMalformed:
		return "", errInvalidToken
	case credLaunch:
		if s.tokenStore == nil {
			return "", errInvalidToken
		}
		subject, err := s.tokenStore.Verify(c.token)
		if err != nil {
			return "", errInvalidToken
		}
		return subject, nil
	case credBearer:
		if s.verifier == nil {
			return "", errNoCredentials
		}
		subject, err := s.verifier.Verify(c.token)
		if err != nil {
			return "", fmt.Errorf("%w: %v", errInvalidToken, err)
		}
		return subject, nil
	default:
		return "", errNoCredentials
	}
}
