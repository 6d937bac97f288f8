// Package auth issues and verifies HMAC-signed bearer tokens carrying an
// arbitrary claims payload. The verified claims become the authorization
// context handed to views.
package auth

import "context"

// Claims is the decoded payload of a verified token.
type Claims map[string]any

// Subject returns the "sub" claim, if it is a string.
func (c Claims) Subject() string {
	sub, _ := c["sub"].(string)
	return sub
}

// Verifier validates a raw token and returns its claims.
type Verifier interface {
	Verify(ctx context.Context, token string) (Claims, error)
}

// TokenService generates and verifies tokens.
type TokenService interface {
	Verifier

	// Generate signs payload. iat and iss are always set; exp defaults to
	// iat plus the configured max age unless payload already carries one.
	Generate(ctx context.Context, payload map[string]any) (string, error)

	// Create signs payload verbatim.
	Create(ctx context.Context, payload map[string]any) (string, error)
}
