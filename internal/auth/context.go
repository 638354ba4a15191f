// ABOUTME: Carries the authenticated identity through tool calls via context
// ABOUTME: Anonymous requests simply have no AuthContext

package auth

import "context"

// AuthContext holds the identity a request authenticated as.
type AuthContext struct {
	Subject string // JWT sub, "static:<n>" or "launch:<label>"
}

type authContextKey struct{}

// WithAuth returns a new context with the AuthContext attached.
func WithAuth(ctx context.Context, auth *AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey{}, auth)
}

// FromContext returns the AuthContext, or nil for anonymous requests.
func FromContext(ctx context.Context) *AuthContext {
	a, _ := ctx.Value(authContextKey{}).(*AuthContext)
	return a
}

// SubjectFromContext returns the authenticated subject, or "".
func SubjectFromContext(ctx context.Context) string {
	if a := FromContext(ctx); a != nil {
		return a.Subject
	}
	return ""
}
