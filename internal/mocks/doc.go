// Package mocks provides centralized mock implementations for testing.
//
// Mocks use function fields for per-test behavior and fall back to fixed
// default values when a function is not set:
//
//	verifier := &mocks.MockTokenService{
//	    VerifyFn: func(ctx context.Context, token string) (auth.Claims, error) {
//	        return auth.Claims{"sub": "user-1"}, nil
//	    },
//	}
//
// When adding a new mock, name the file after the interface being mocked and
// give every interface method a function field.
package mocks
