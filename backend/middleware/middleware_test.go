package middleware

import (
	"bytes"
	"context"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"academy/backend/access"
	"academy/backend/apperr"
	"academy/backend/config"
	"academy/backend/models"
	"academy/backend/utils"
)

var testCfg = &config.Config{JWTSecret: "test-secret", JWTTTL: time.Hour}

type userMap map[uint]models.User

func (m userMap) FindUser(_ context.Context, id uint) (*models.User, error) {
	u, ok := m[id]
	if !ok {
		return nil, apperr.NotFound("user")
	}
	return &u, nil
}

func (m userMap) add(id uint, roles ...string) models.User {
	u := models.User{Roles: roles}
	u.ID = id
	m[id] = u
	return u
}

func tokenFor(t *testing.T, u models.User) string {
	t.Helper()
	token, err := utils.GenerateJWTToken(u, testCfg)
	require.NoError(t, err)
	return "Bearer " + token
}

func newApp(users userMap) *fiber.App {
	app := fiber.New()
	app.Use(Authenticate(testCfg, users))
	app.Get("/whoami", func(c *fiber.Ctx) error {
		p := utils.Principal(c)
		return c.JSON(fiber.Map{"user_id": p.UserID, "admin": p.IsAdmin()})
	})
	app.Get("/private", RequireAuth(), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	app.Get("/admin", RequireRole(access.RoleAdmin), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	return app
}

func do(t *testing.T, app *fiber.App, path, auth string) int {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp.StatusCode
}

func TestAuthenticate(t *testing.T) {
	users := userMap{}
	app := newApp(users)

	assert.Equal(t, fiber.StatusOK, do(t, app, "/whoami", ""))
	assert.Equal(t, fiber.StatusUnauthorized, do(t, app, "/whoami", "Bearer garbage"))
	assert.Equal(t, fiber.StatusOK, do(t, app, "/whoami", tokenFor(t, users.add(4, "customer"))))
}

func TestRequireAuthAndRole(t *testing.T) {
	users := userMap{}
	app := newApp(users)
	customer := tokenFor(t, users.add(4, "customer"))
	admin := tokenFor(t, users.add(1, "admin"))

	assert.Equal(t, fiber.StatusUnauthorized, do(t, app, "/private", ""))
	assert.Equal(t, fiber.StatusOK, do(t, app, "/private", customer))

	assert.Equal(t, fiber.StatusUnauthorized, do(t, app, "/admin", ""))
	assert.Equal(t, fiber.StatusForbidden, do(t, app, "/admin", customer))
	assert.Equal(t, fiber.StatusOK, do(t, app, "/admin", admin))
}

func TestRolesFollowStoredAccount(t *testing.T) {
	users := userMap{}
	app := newApp(users)
	token := tokenFor(t, users.add(1, "admin"))
	require.Equal(t, fiber.StatusOK, do(t, app, "/admin", token))

	users.add(1, "customer")
	assert.Equal(t, fiber.StatusForbidden, do(t, app, "/admin", token))

	delete(users, 1)
	assert.Equal(t, fiber.StatusUnauthorized, do(t, app, "/private", token))
}

func TestLoggingMiddlewareLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	app := fiber.New()
	app.Use(LoggingMiddleware(logger))
	app.Get("/ok", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	app.Get("/missing", func(c *fiber.Ctx) error { return fiber.ErrNotFound })

	_, err := app.Test(httptest.NewRequest("GET", "/ok", nil))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"level":"INFO"`)
	assert.Contains(t, buf.String(), `"path":"/ok"`)

	buf.Reset()
	_, err = app.Test(httptest.NewRequest("GET", "/missing", nil))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"level":"WARN"`)
	assert.Contains(t, buf.String(), `"status":404`)
}
