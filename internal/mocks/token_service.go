package mocks

import (
	"context"
	"sync"

	"github.com/phrazzld/viewset/internal/service/auth"
)

// MockTokenService implements auth.TokenService for testing.
type MockTokenService struct {
	GenerateFn func(ctx context.Context, payload map[string]any) (string, error)
	CreateFn   func(ctx context.Context, payload map[string]any) (string, error)
	VerifyFn   func(ctx context.Context, token string) (auth.Claims, error)

	// Default values used when functions aren't explicitly defined
	Token     string
	Err       error
	Claims    auth.Claims
	VerifyErr error

	mu           sync.Mutex
	VerifiedWith []string
}

var _ auth.TokenService = (*MockTokenService)(nil)

// Generate implements auth.TokenService.
func (m *MockTokenService) Generate(ctx context.Context, payload map[string]any) (string, error) {
	if m.GenerateFn != nil {
		return m.GenerateFn(ctx, payload)
	}
	return m.Token, m.Err
}

// Create implements auth.TokenService.
func (m *MockTokenService) Create(ctx context.Context, payload map[string]any) (string, error) {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, payload)
	}
	return m.Token, m.Err
}

// Verify implements auth.Verifier and records the token it was given.
func (m *MockTokenService) Verify(ctx context.Context, token string) (auth.Claims, error) {
	m.mu.Lock()
	m.VerifiedWith = append(m.VerifiedWith, token)
	m.mu.Unlock()

	if m.VerifyFn != nil {
		return m.VerifyFn(ctx, token)
	}
	return m.Claims, m.VerifyErr
}

// VerifyCount returns how many times Verify was called.
func (m *MockTokenService) VerifyCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.VerifiedWith)
}
