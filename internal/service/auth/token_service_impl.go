package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/phrazzld/viewset/internal/config"
	"github.com/phrazzld/viewset/internal/platform/logger"
)

// hmacTokenService signs tokens with HMAC-SHA256.
type hmacTokenService struct {
	signingKey []byte
	issuer     string
	maxAge     time.Duration
	timeFunc   func() time.Time
	clockSkew  time.Duration
}

var _ TokenService = (*hmacTokenService)(nil)

// NewTokenService creates an HS256 token service from auth configuration.
func NewTokenService(cfg config.AuthConfig) (TokenService, error) {
	return newHMACTokenService(cfg, time.Now)
}

func newHMACTokenService(cfg config.AuthConfig, now func() time.Time) (*hmacTokenService, error) {
	if len(cfg.JWTSecret) < 32 {
		return nil, ErrWeakSecret
	}
	return &hmacTokenService{
		signingKey: []byte(cfg.JWTSecret),
		issuer:     cfg.Issuer,
		maxAge:     time.Duration(cfg.MaxAgeMinutes) * time.Minute,
		timeFunc:   now,
		clockSkew:  30 * time.Second,
	}, nil
}

// Generate implements TokenService.
func (s *hmacTokenService) Generate(ctx context.Context, payload map[string]any) (string, error) {
	now := s.timeFunc()

	claims := jwt.MapClaims{}
	for k, v := range payload {
		claims[k] = v
	}
	claims["iat"] = now.Unix()
	if _, ok := claims["exp"]; !ok && s.maxAge > 0 {
		claims["exp"] = now.Add(s.maxAge).Unix()
	}
	if s.issuer != "" {
		claims["iss"] = s.issuer
	}

	return s.sign(ctx, claims)
}

// Create implements TokenService.
func (s *hmacTokenService) Create(ctx context.Context, payload map[string]any) (string, error) {
	claims := jwt.MapClaims{}
	for k, v := range payload {
		claims[k] = v
	}
	return s.sign(ctx, claims)
}

func (s *hmacTokenService) sign(ctx context.Context, claims jwt.MapClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		logger.FromContext(ctx).Error("failed to sign token",
			"error", err,
			"signing_method", jwt.SigningMethodHS256.Name)
		return "", fmt.Errorf("failed to sign token with HMAC-SHA256: %w", err)
	}
	return signed, nil
}

// Verify implements Verifier. Signature, exp and nbf are checked; iss is
// checked when an issuer is configured.
func (s *hmacTokenService) Verify(ctx context.Context, tokenString string) (Claims, error) {
	log := logger.FromContext(ctx)

	if tokenString == "" {
		return nil, ErrMissingToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithLeeway(s.clockSkew),
		jwt.WithTimeFunc(s.timeFunc),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.signingKey, nil
	}, opts...)

	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			log.Debug("token validation failed: token expired", "error", err)
			return nil, ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenNotValidYet):
			log.Debug("token validation failed: token not yet valid", "error", err)
			return nil, ErrTokenNotYetValid
		default:
			log.Debug("token validation failed",
				"error", err,
				"error_type", fmt.Sprintf("%T", err))
			return nil, ErrInvalidToken
		}
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	return Claims(claims), nil
}
