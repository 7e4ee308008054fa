package accounts_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	accounts "github.com/screenhall/go-accounts"
)

func TestProtectedRouteContextPropagation(t *testing.T) {
	repo := newFakeRepoManager()
	user := repo.seedUser("pepe@example.com", "password-123", true)
	cfg := newTestConfig()
	ts := accounts.NewTokenService(cfg, nil)

	authError := func(c *fiber.Ctx, err error) error {
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	app := fiber.New()
	gate := accounts.ProtectedRoute(cfg, ts, authError)
	account := accounts.RequireAccount(cfg, repo, nil)

	// the handler reads everything off the standard context, never fiber
	// locals
	app.Get("/whoami", gate, account, func(c *fiber.Ctx) error {
		claims, ok := accounts.GetClaims(c.UserContext())
		if !ok {
			return c.SendStatus(fiber.StatusInternalServerError)
		}
		current, ok := accounts.FromContext(c.UserContext())
		if !ok {
			return c.SendStatus(fiber.StatusInternalServerError)
		}
		return c.JSON(fiber.Map{
			"uid":   claims.UserID(),
			"email": current.Email,
		})
	})

	token, err := ts.GenerateAccessToken(user.Identity())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := app.Test(req)
	require.NoError(t, err)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]string
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, user.ID.String(), out["uid"])
	assert.Equal(t, "pepe@example.com", out["email"])
}
