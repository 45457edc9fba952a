package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// TokenManager issues and verifies HS256 JWTs whose subject is a user id.
type TokenManager struct {
	secret []byte
	issuer string
}

// NewTokenManager creates a manager with the provided secret and issuer.
func NewTokenManager(secret, issuer string) *TokenManager {
	return &TokenManager{
		secret: []byte(secret),
		issuer: issuer,
	}
}

// Generate issues a signed JWT string for userId, valid for ttl.
func (t *TokenManager) Generate(userId string, ttl time.Duration) (string, error) {
	if userId == "" {
		return "", fmt.Errorf("user id is required")
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": userId,
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	if t.issuer != "" {
		claims["iss"] = t.issuer
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Subject verifies a token and returns its subject.
func (t *TokenManager) Subject(tokenString string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if t.issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.issuer))
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return t.secret, nil
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return subject, nil
}
