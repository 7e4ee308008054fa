package accounts_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	accounts "github.com/screenhall/go-accounts"
)

func TestHashPassword(t *testing.T) {
	t.Run("hashes a password", func(t *testing.T) {
		hash, err := accounts.HashPassword("correct horse battery staple")
		require.NoError(t, err)
		assert.NotEmpty(t, hash)
		assert.NotEqual(t, "correct horse battery staple", hash)
	})

	t.Run("rejects the empty string", func(t *testing.T) {
		_, err := accounts.HashPassword("")
		assert.ErrorIs(t, err, accounts.ErrNoEmptyString)
	})
}

func TestComparePasswordAndHash(t *testing.T) {
	hash, err := accounts.HashPassword("s3cret-password")
	require.NoError(t, err)

	t.Run("accepts the right password", func(t *testing.T) {
		assert.NoError(t, accounts.ComparePasswordAndHash("s3cret-password", hash))
	})

	t.Run("rejects the wrong password", func(t *testing.T) {
		err := accounts.ComparePasswordAndHash("wrong-password", hash)
		assert.ErrorIs(t, err, accounts.ErrMismatchedHashAndPassword)
	})
}

func TestRandomPasswordHash(t *testing.T) {
	h1 := accounts.RandomPasswordHash()
	h2 := accounts.RandomPasswordHash()
	assert.NotEmpty(t, h1)
	assert.NotEqual(t, h1, h2)
}
