package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTokenRoundTrip(t *testing.T) {
	cfg := JWTConfig{SecretKey: "test-secret", Issuer: "wbzero-canvas"}
	validator, err := NewJWTValidator(cfg)
	require.NoError(t, err)

	token, err := SignToken(cfg, "user-42", time.Hour)
	require.NoError(t, err)

	claims, err := validator.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-42", claims.UserID)
}

func TestValidateTokenExpired(t *testing.T) {
	cfg := JWTConfig{SecretKey: "test-secret"}
	validator, err := NewJWTValidator(cfg)
	require.NoError(t, err)

	token, err := SignToken(cfg, "user-42", -time.Minute)
	require.NoError(t, err)

	_, err = validator.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestValidateTokenWrongSecret(t *testing.T) {
	signed, err := SignToken(JWTConfig{SecretKey: "secret-a"}, "user-42", time.Hour)
	require.NoError(t, err)

	validator, err := NewJWTValidator(JWTConfig{SecretKey: "secret-b"})
	require.NoError(t, err)

	_, err = validator.ValidateToken(signed)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestValidateTokenWrongIssuer(t *testing.T) {
	signed, err := SignToken(JWTConfig{SecretKey: "s", Issuer: "somewhere-else"}, "user-42", time.Hour)
	require.NoError(t, err)

	validator, err := NewJWTValidator(JWTConfig{SecretKey: "s", Issuer: "wbzero-canvas"})
	require.NoError(t, err)

	_, err = validator.ValidateToken(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidatorRequiresSecret(t *testing.T) {
	_, err := NewJWTValidator(JWTConfig{})
	assert.Error(t, err)
}
