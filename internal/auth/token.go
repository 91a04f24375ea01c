package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingSecret = errors.New("jwt secret is not configured")
	ErrInvalidToken  = errors.New("invalid token")
	ErrTokenExpired  = errors.New("token expired")
	ErrMissingUserID = errors.New("token has no user id")
)

// Claims is what the identity provider puts into an access token.
// user_id wins over the registered subject when both are present.
type Claims struct {
	UserID string `json:"user_id,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) CallerID() string {
	if c.UserID != "" {
		return c.UserID
	}
	return c.Subject
}

// TokenParser verifies HS256 access tokens issued by the identity provider.
type TokenParser struct {
	secret []byte
}

func NewTokenParser(secret string) *TokenParser {
	return &TokenParser{secret: []byte(secret)}
}

// ParseToken returns the verified caller id of tokenStr.
func (p *TokenParser) ParseToken(tokenStr string) (string, error) {
	if len(p.secret) == 0 {
		return "", ErrMissingSecret
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return p.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	callerID := claims.CallerID()
	if callerID == "" {
		return "", ErrMissingUserID
	}
	return callerID, nil
}

// IssueToken signs a token for userID. The identity provider owns issuance;
// this exists for local tooling and tests.
func (p *TokenParser) IssueToken(userID string, ttl time.Duration) (string, error) {
	if len(p.secret) == 0 {
		return "", ErrMissingSecret
	}
	now := time.Now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
}
