// Package auth authenticates requests to the HTTP transport.
//
// # Authentication Methods
//
//   - JWT Tokens: HS256 tokens signed with server.jwt_secret. The "sub" claim
//     becomes the request subject.
//
//   - Static Tokens: opaque tokens generated by `quarkdown-mcp token`. Only
//     their bcrypt hashes are configured, in server.token_hashes.
//
// Several verifiers combine with ChainVerifier:
//
//	verifier := auth.ChainVerifier{jwtVerifier, staticVerifier}
//	handler = auth.HTTPAuthMiddleware(verifier, logger)(handler)
//
// The stdio transport is never authenticated: whoever starts the process
// owns it.
package auth
