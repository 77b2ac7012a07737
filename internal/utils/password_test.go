package utils

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("s3cret-pw", 4)
	require.NoError(t, err)
	require.NotEqual(t, "s3cret-pw", hash)

	require.True(t, VerifyPassword(hash, "s3cret-pw"))
	require.False(t, VerifyPassword(hash, "wrong"))
	require.False(t, VerifyPassword("not-a-hash", "s3cret-pw"))
}

func TestHashPasswordClampsBadCost(t *testing.T) {
	// 99 is above bcrypt's maximum; the helper falls back to the default
	// cost instead of surfacing an InvalidCostError.
	hash, err := HashPassword("s3cret-pw", 99)
	require.NoError(t, err)
	require.True(t, VerifyPassword(hash, "s3cret-pw"))
}

func TestHashPasswordDistinctSalts(t *testing.T) {
	a, err := HashPassword("same input", 4)
	require.NoError(t, err)
	b, err := HashPassword("same input", 4)
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}
