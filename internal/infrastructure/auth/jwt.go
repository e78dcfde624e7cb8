// Package auth validates and issues HS256 bearer tokens
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/garyjia/open-audit/internal/domain/entity"
)

var (
	// ErrInvalidToken covers malformed, badly signed and identity-less tokens
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired is returned for tokens past their exp claim
	ErrTokenExpired = errors.New("token has expired")
)

// userClaims is the identity block. It appears either at the top level of the
// payload or nested under "user".
type userClaims struct {
	ID     string `json:"id,omitempty"`
	UserID string `json:"user_id,omitempty"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role,omitempty"`
}

// Claims accepts both token shapes
type Claims struct {
	userClaims
	User *userClaims `json:"user,omitempty"`
	jwt.RegisteredClaims
}

// Identity normalizes either shape into one Identity. The nested block wins.
func (c *Claims) Identity() entity.Identity {
	src := c.userClaims
	if c.User != nil {
		src = *c.User
	}
	id := src.ID
	if id == "" {
		id = src.UserID
	}
	if id == "" {
		id = c.Subject
	}
	return entity.Identity{UserID: id, Email: src.Email, Role: src.Role}
}

// TokenService handles token creation and validation
type TokenService struct {
	signingKey []byte
	issuer     string
	ttl        time.Duration
}

// NewTokenService creates a TokenService. An empty secret is rejected.
func NewTokenService(secret, issuer string, ttl time.Duration) (*TokenService, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenService{signingKey: []byte(secret), issuer: issuer, ttl: ttl}, nil
}

// Issue signs a token carrying identity in the nested form
func (s *TokenService) Issue(identity entity.Identity) (string, error) {
	if identity.UserID == "" {
		return "", fmt.Errorf("%w: user id is required", ErrInvalidToken)
	}
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		User: &userClaims{ID: identity.UserID, Email: identity.Email, Role: identity.Role},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UserID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			ID:        uuid.NewString(),
		},
	})
	return token.SignedString(s.signingKey)
}

// Validate checks signature and expiry and returns the caller identity
func (s *TokenService) Validate(tokenString string) (entity.Identity, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return s.signingKey, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return entity.Identity{}, ErrTokenExpired
		}
		return entity.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return entity.Identity{}, ErrInvalidToken
	}

	identity := claims.Identity()
	if identity.UserID == "" {
		return entity.Identity{}, fmt.Errorf("%w: no user id", ErrInvalidToken)
	}
	return identity, nil
}
