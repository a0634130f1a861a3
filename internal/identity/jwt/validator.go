// Package jwt validates the bearer tokens accepted by the incident action API.
package jwt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bissquit/oncall-garden/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for tokens that fail validation.
var ErrInvalidToken = errors.New("invalid token")

// Config contains token validation settings.
type Config struct {
	SecretKey string
	Issuer    string
}

// Claims are the token claims. The subject is the user ID.
type Claims struct {
	Role domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// Validator checks HMAC-signed tokens.
type Validator struct {
	secret []byte
	issuer string
}

// NewValidator creates a new token validator.
func NewValidator(cfg Config) *Validator {
	return &Validator{secret: []byte(cfg.SecretKey), issuer: cfg.Issuer}
}

// ValidateToken returns the user ID and role carried by a valid token.
func (v *Validator) ValidateToken(_ context.Context, tokenString string) (string, domain.Role, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return "", "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	role := claims.Role
	if role == "" {
		role = domain.RoleResponder
	}
	return claims.Subject, role, nil
}

// IssueToken signs a token for userID. It is used by operators and tests to
// mint credentials with the shared secret.
func (v *Validator) IssueToken(userID string, role domain.Role, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
