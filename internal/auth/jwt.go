package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

var (
	// ErrInvalidToken is returned for malformed, expired or wrongly signed tokens
	ErrInvalidToken = errors.New("invalid token")

	// ErrMissingSecret is returned when no signing secret is configured
	ErrMissingSecret = errors.New("JWT secret is not configured")
)

// AdminClaims are carried by tokens used by operators and the registration bot
type AdminClaims struct {
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// HasRole reports whether any carried role grants the required one
func (c *AdminClaims) HasRole(required Role) bool {
	for _, r := range c.Roles {
		if Role(r).HasPermission(required) {
			return true
		}
	}
	return false
}

// GenerateAdminJWT signs a token for subject with the given roles
func GenerateAdminJWT(subject string, roles []Role, ttl time.Duration, secret []byte) (string, time.Time, error) {
	if len(secret) == 0 {
		return "", time.Time{}, ErrMissingSecret
	}
	for _, r := range roles {
		if !r.IsValid() {
			return "", time.Time{}, fmt.Errorf("invalid role %q", r)
		}
	}

	now := time.Now()
	expiresAt := now.Add(ttl)
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = r.String()
	}

	claims := AdminClaims{
		Roles: names,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ValidateAdminJWT verifies signature and expiry and returns the claims
func ValidateAdminJWT(tokenString string, secret []byte) (*AdminClaims, error) {
	if len(secret) == 0 {
		return nil, ErrMissingSecret
	}

	claims := &AdminClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
