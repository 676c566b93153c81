package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golang.org/x/crypto/bcrypt"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("s3cret-pass", bcrypt.MinCost)
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret-pass", hash)

	assert.True(t, VerifyPassword(hash, "s3cret-pass"))
	assert.False(t, VerifyPassword(hash, "wrong-pass"))
}

func TestHashPasswordDefaultsUnsetCost(t *testing.T) {
	hash, err := HashPassword("s3cret-pass", 0)
	require.NoError(t, err)

	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.DefaultCost, cost)
	assert.True(t, VerifyPassword(hash, "s3cret-pass"))
}

func TestVerifyPasswordRejectsGarbageHash(t *testing.T) {
	assert.False(t, VerifyPassword("not-a-bcrypt-hash", "anything"))
}
