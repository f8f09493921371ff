package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct-horse-battery-staple")
	require.NoError(t, err)

	assert.True(t, VerifyPassword(hash, "correct-horse-battery-staple"))
	assert.False(t, VerifyPassword(hash, "wrong-password"))
}

func TestHashProducesDistinctSalts(t *testing.T) {
	h1, err := HashPassword("same-password")
	require.NoError(t, err)
	h2, err := HashPassword("same-password")
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2)
	assert.True(t, VerifyPassword(h1, "same-password"))
	assert.True(t, VerifyPassword(h2, "same-password"))
}
