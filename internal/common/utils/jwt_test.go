// internal/common/utils/jwt_test.go

package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	now := time.Now()
	token, err := GenerateJWT(&JWTClaims{
		Subject:   "admin",
		Role:      "admin",
		Type:      "access",
		IssuedAt:  now.Unix(),
		NotBefore: now.Unix(),
		ExpiresAt: now.Add(time.Hour).Unix(),
		Issuer:    "gratitude-backend",
	}, "secret")
	require.NoError(t, err)

	claims, err := ValidateJWT(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Subject)
	assert.Equal(t, "access", claims.Type)
	assert.Equal(t, now.Add(time.Hour).Unix(), claims.ExpiresAt)

	_, err = ValidateJWT(token, "other")
	assert.Error(t, err)
}

func TestJWTExpired(t *testing.T) {
	past := time.Now().Add(-2 * time.Hour)
	token, err := GenerateJWT(&JWTClaims{
		Subject:   "admin",
		Type:      "access",
		IssuedAt:  past.Unix(),
		ExpiresAt: past.Add(time.Hour).Unix(),
	}, "secret")
	require.NoError(t, err)

	_, err = ValidateJWT(token, "secret")
	assert.Error(t, err)
}
