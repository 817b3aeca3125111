package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyRoundTrip(t *testing.T) {
	v := NewVerifier("test-secret")
	userID := uuid.New()

	token, err := v.Sign(userID, time.Hour)
	require.NoError(t, err)

	claims, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
}

func TestVerifyExpired(t *testing.T) {
	v := NewVerifier("test-secret")
	token, err := v.Sign(uuid.New(), -time.Minute)
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerifyWrongSecret(t *testing.T) {
	signer := NewVerifier("secret-a")
	token, err := signer.Sign(uuid.New(), time.Hour)
	require.NoError(t, err)

	_, err = NewVerifier("secret-b").Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyGarbage(t *testing.T) {
	v := NewVerifier("test-secret")
	for _, token := range []string{"", "not-a-jwt", "a.b.c"} {
		_, err := v.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidToken, "token %q", token)
	}
}

func TestVerifyNonUUIDSubject(t *testing.T) {
	secret := []byte("test-secret")
	raw := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "not-a-uuid",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	token, err := raw.SignedString(secret)
	require.NoError(t, err)

	_, err = NewVerifier("test-secret").Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyMissingSubject(t *testing.T) {
	secret := []byte("test-secret")
	raw := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	token, err := raw.SignedString(secret)
	require.NoError(t, err)

	_, err = NewVerifier("test-secret").Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
