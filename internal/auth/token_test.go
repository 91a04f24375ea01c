package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenParser_RoundTrip(t *testing.T) {
	p := NewTokenParser("secret")

	token, err := p.IssueToken("user-1", time.Hour)
	require.NoError(t, err)

	callerID, err := p.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", callerID)
}

func TestTokenParser_SubjectFallback(t *testing.T) {
	p := NewTokenParser("secret")
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-2",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	callerID, err := p.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-2", callerID)
}

func TestTokenParser_Rejects(t *testing.T) {
	p := NewTokenParser("secret")

	t.Run("wrong secret", func(t *testing.T) {
		token, err := NewTokenParser("other").IssueToken("user-1", time.Hour)
		require.NoError(t, err)
		_, err = p.ParseToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		token, err := p.IssueToken("user-1", -time.Minute)
		require.NoError(t, err)
		_, err = p.ParseToken(token)
		assert.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("no user id", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		}).SignedString([]byte("secret"))
		require.NoError(t, err)
		_, err = p.ParseToken(token)
		assert.ErrorIs(t, err, ErrMissingUserID)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := p.ParseToken("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("missing secret", func(t *testing.T) {
		_, err := NewTokenParser("").ParseToken("x")
		assert.ErrorIs(t, err, ErrMissingSecret)
	})
}
