package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"site_registry/internal/domain"
)

// tokenClaims are the JWT claims of an access token
type tokenClaims struct {
	Username string              `json:"username"`
	Role     string              `json:"role"`
	Kind     domain.IdentityKind `json:"kind"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 access tokens
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer creates an issuer
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a token for identity
func (t *TokenIssuer) Issue(identity domain.Identity) (string, error) {
	now := t.now()
	claims := tokenClaims{
		Username: identity.Username,
		Role:     identity.Role,
		Kind:     identity.Kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses a token and returns the identity in its claims
func (t *TokenIssuer) Verify(token string) (domain.Identity, error) {
	var claims tokenClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}

	return domain.Identity{
		UserID:   claims.Subject,
		Username: claims.Username,
		Role:     claims.Role,
		Kind:     claims.Kind,
	}, nil
}
