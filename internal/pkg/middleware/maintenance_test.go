package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snapboxhq/snapbox/internal/pkg/env"
)

func newMaintenanceApp() *fiber.App {
	app := fiber.New()
	app.Post("/cleanup", MaintenanceAuthMiddleware(), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	return app
}

func TestMaintenanceAuth(t *testing.T) {
	env.Env = map[string]string{"MAINTENANCE_TOKEN": "mt-secret"}
	t.Cleanup(func() { env.Env = nil })

	app := newMaintenanceApp()

	// Missing token
	resp, err := app.Test(httptest.NewRequest("POST", "/cleanup", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	// Wrong token
	req := httptest.NewRequest("POST", "/cleanup", nil)
	req.Header.Set(MaintenanceTokenHeader, "wrong")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	// Correct token
	req = httptest.NewRequest("POST", "/cleanup", nil)
	req.Header.Set(MaintenanceTokenHeader, "mt-secret")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestMaintenanceAuth_Unconfigured(t *testing.T) {
	env.Env = map[string]string{}
	t.Cleanup(func() { env.Env = nil })

	app := newMaintenanceApp()

	req := httptest.NewRequest("POST", "/cleanup", nil)
	req.Header.Set(MaintenanceTokenHeader, "anything")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}
