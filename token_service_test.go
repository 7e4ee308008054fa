package accounts_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	accounts "github.com/screenhall/go-accounts"
)

func TestNewTokenService(t *testing.T) {
	t.Run("creates token service with nil logger", func(t *testing.T) {
		service := accounts.NewTokenService(newTestConfig(), nil)
		assert.NotNil(t, service)
	})
}

func TestTokenService_AccessToken(t *testing.T) {
	service := accounts.NewTokenService(newTestConfig(), nil)
	identity := testIdentity{id: "user-123", email: "pepe@example.com", role: "user"}

	t.Run("round trips subject and role", func(t *testing.T) {
		token, err := service.GenerateAccessToken(identity)
		require.NoError(t, err)
		require.NotEmpty(t, token)

		claims, err := service.Validate(token)
		require.NoError(t, err)

		assert.Equal(t, "user-123", claims.Subject())
		assert.Equal(t, "user-123", claims.UserID())
		assert.Equal(t, "user", claims.Role())
		assert.Equal(t, accounts.TokenTypeAccess, claims.TokenType())
	})

	t.Run("expiry matches the configured TTL", func(t *testing.T) {
		token, err := service.GenerateAccessToken(identity)
		require.NoError(t, err)

		claims, err := service.Validate(token)
		require.NoError(t, err)

		expected := time.Now().Add(15 * time.Minute)
		assert.WithinDuration(t, expected, claims.Expires(), 5*time.Second)
	})

	t.Run("rejects expired tokens", func(t *testing.T) {
		token, _, err := accounts.MintToken(service, identity, accounts.TokenOptions{
			TTL:      time.Minute,
			IssuedAt: time.Now().Add(-time.Hour),
		})
		require.NoError(t, err)

		_, err = service.Validate(token)
		require.Error(t, err)
		assert.True(t, accounts.IsTokenExpiredError(err))
	})

	t.Run("rejects tampered tokens", func(t *testing.T) {
		token, err := service.GenerateAccessToken(identity)
		require.NoError(t, err)

		parts := strings.Split(token, ".")
		require.Len(t, parts, 3)
		tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("x", len(parts[2]))

		_, err = service.Validate(tampered)
		require.Error(t, err)
		assert.True(t, accounts.IsTokenMalformedError(err))
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := service.Validate("not-a-token")
		require.Error(t, err)
		assert.True(t, accounts.IsTokenMalformedError(err))
	})
}

func TestTokenService_RefreshToken(t *testing.T) {
	service := accounts.NewTokenService(newTestConfig(), nil)
	identity := testIdentity{id: "user-123", email: "pepe@example.com", role: "user"}

	t.Run("round trips and reports expiry", func(t *testing.T) {
		token, expiresAt, err := service.GenerateRefreshToken(identity)
		require.NoError(t, err)

		claims, err := service.ValidateRefreshToken(token)
		require.NoError(t, err)

		assert.Equal(t, "user-123", claims.UserID())
		assert.Equal(t, accounts.TokenTypeRefresh, claims.TokenType())
		assert.WithinDuration(t, expiresAt, claims.Expires(), time.Second)

		expected := time.Now().Add(30 * 24 * time.Hour)
		assert.WithinDuration(t, expected, expiresAt, 5*time.Second)
	})

	t.Run("a refresh token does not pass as an access token", func(t *testing.T) {
		token, _, err := service.GenerateRefreshToken(identity)
		require.NoError(t, err)

		_, err = service.Validate(token)
		require.Error(t, err)
	})

	t.Run("an access token does not pass as a refresh token", func(t *testing.T) {
		token, err := service.GenerateAccessToken(identity)
		require.NoError(t, err)

		_, err = service.ValidateRefreshToken(token)
		require.Error(t, err)
	})

	t.Run("falls back to the access key when no refresh key is set", func(t *testing.T) {
		cfg := newTestConfig()
		cfg.refreshSigningKey = ""
		svc := accounts.NewTokenService(cfg, nil)

		token, _, err := svc.GenerateRefreshToken(identity)
		require.NoError(t, err)

		claims, err := svc.ValidateRefreshToken(token)
		require.NoError(t, err)
		assert.Equal(t, accounts.TokenTypeRefresh, claims.TokenType())
	})
}

func TestMintToken(t *testing.T) {
	service := accounts.NewTokenService(newTestConfig(), nil)
	identity := testIdentity{id: "user-123", email: "pepe@example.com", role: "user"}

	t.Run("requires a token service", func(t *testing.T) {
		_, _, err := accounts.MintToken(nil, identity, accounts.TokenOptions{})
		assert.Error(t, err)
	})

	t.Run("requires an identity", func(t *testing.T) {
		_, _, err := accounts.MintToken(service, nil, accounts.TokenOptions{})
		assert.Error(t, err)
	})

	t.Run("mints refresh tokens on request", func(t *testing.T) {
		token, _, err := accounts.MintToken(service, identity, accounts.TokenOptions{
			TTL:       time.Hour,
			TokenType: accounts.TokenTypeRefresh,
		})
		require.NoError(t, err)

		claims, err := service.ValidateRefreshToken(token)
		require.NoError(t, err)
		assert.Equal(t, accounts.TokenTypeRefresh, claims.TokenType())
	})
}
