package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAccessTokenCarriesIdentityClaims(t *testing.T) {
	tok, err := NewAccessToken("test-secret", "u1", "miner@example.com", "admin", 15)
	require.NoError(t, err)
	require.NotEmpty(t, tok.Token)

	parsed, err := jwt.Parse(tok.Token, func(*jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	require.NoError(t, err)
	require.True(t, parsed.Valid)

	claims := parsed.Claims.(jwt.MapClaims)
	assert.Equal(t, "u1", claims["sub"])
	assert.Equal(t, "miner@example.com", claims["email"])
	assert.Equal(t, "admin", claims["role"])
	assert.WithinDuration(t, time.Now().UTC().Add(15*time.Minute), tok.Exp, 5*time.Second)
}

func TestNewAccessTokenRejectsWrongSecret(t *testing.T) {
	tok, err := NewAccessToken("right-secret", "u1", "miner@example.com", "user", 15)
	require.NoError(t, err)

	_, err = jwt.Parse(tok.Token, func(*jwt.Token) (interface{}, error) {
		return []byte("wrong-secret"), nil
	})
	assert.Error(t, err)
}

func TestOpaqueTokensAreUniqueWithExpectedTTL(t *testing.T) {
	reset, err := NewResetToken()
	require.NoError(t, err)
	verify, err := NewVerificationToken()
	require.NoError(t, err)

	assert.Len(t, reset.Raw, 64) // 32 random bytes, hex encoded
	assert.NotEqual(t, reset.Raw, verify.Raw)
	assert.WithinDuration(t, time.Now().UTC().Add(time.Hour), reset.Exp, 5*time.Second)
	assert.WithinDuration(t, time.Now().UTC().Add(24*time.Hour), verify.Exp, 5*time.Second)
}
