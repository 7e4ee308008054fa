package accounts_test

import (
	"context"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	accounts "github.com/screenhall/go-accounts"
)

func seedActivation(repo *fakeRepoManager, user *accounts.User, token string, expiresAt time.Time) *accounts.ActivationToken {
	rec := &accounts.ActivationToken{
		UserID:    user.ID,
		Token:     token,
		ExpiresAt: expiresAt,
	}
	created, err := repo.activationTokens.CreateTx(context.Background(), nil, rec)
	if err != nil {
		panic(err)
	}
	return created
}

func TestActivateAccount(t *testing.T) {
	t.Run("activates the account and consumes the token", func(t *testing.T) {
		repo := newFakeRepoManager()
		user := repo.seedUser("pepe@example.com", "password-123", false)
		seedActivation(repo, user, "tok-1", time.Now().UTC().Add(time.Hour))

		handler := accounts.NewActivateAccountHandler(repo)

		err := handler.Execute(context.Background(), accounts.ActivateAccountMessage{
			Email: "pepe@example.com",
			Token: "tok-1",
		})
		require.NoError(t, err)

		stored, _ := repo.users.get(user.ID)
		assert.True(t, stored.IsActive)
		assert.Equal(t, 0, repo.activationTokens.count())
	})

	t.Run("an unknown email and token pair is invalid", func(t *testing.T) {
		repo := newFakeRepoManager()
		user := repo.seedUser("pepe@example.com", "password-123", false)
		seedActivation(repo, user, "tok-1", time.Now().UTC().Add(time.Hour))

		handler := accounts.NewActivateAccountHandler(repo)

		// right token, wrong email
		err := handler.Execute(context.Background(), accounts.ActivateAccountMessage{
			Email: "other@example.com",
			Token: "tok-1",
		})
		assertTokenInvalid(t, err)

		// right email, wrong token
		err = handler.Execute(context.Background(), accounts.ActivateAccountMessage{
			Email: "pepe@example.com",
			Token: "tok-2",
		})
		assertTokenInvalid(t, err)

		// the record survives failed pair lookups
		assert.Equal(t, 1, repo.activationTokens.count())
		stored, _ := repo.users.get(user.ID)
		assert.False(t, stored.IsActive)
	})

	t.Run("an expired token is consumed and reported invalid", func(t *testing.T) {
		repo := newFakeRepoManager()
		user := repo.seedUser("pepe@example.com", "password-123", false)
		seedActivation(repo, user, "tok-1", time.Now().UTC().Add(-time.Minute))

		handler := accounts.NewActivateAccountHandler(repo)

		err := handler.Execute(context.Background(), accounts.ActivateAccountMessage{
			Email: "pepe@example.com",
			Token: "tok-1",
		})
		assertTokenInvalid(t, err)

		// expired credentials are single use, the record is gone
		assert.Equal(t, 0, repo.activationTokens.count())
		stored, _ := repo.users.get(user.ID)
		assert.False(t, stored.IsActive)
	})

	t.Run("an already active account conflicts and keeps the token", func(t *testing.T) {
		repo := newFakeRepoManager()
		user := repo.seedUser("pepe@example.com", "password-123", true)
		seedActivation(repo, user, "tok-1", time.Now().UTC().Add(time.Hour))

		handler := accounts.NewActivateAccountHandler(repo)

		err := handler.Execute(context.Background(), accounts.ActivateAccountMessage{
			Email: "pepe@example.com",
			Token: "tok-1",
		})
		require.Error(t, err)

		var richErr *goerrors.Error
		require.True(t, goerrors.As(err, &richErr))
		assert.Equal(t, accounts.TextCodeAlreadyActive, richErr.TextCode)

		// duplicate submits keep reporting the same outcome
		assert.Equal(t, 1, repo.activationTokens.count())
	})
}

func assertTokenInvalid(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, accounts.TextCodeTokenInvalid, richErr.TextCode)
	assert.Equal(t, goerrors.CodeBadRequest, richErr.Code)
}
