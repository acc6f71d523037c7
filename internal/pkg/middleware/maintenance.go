package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/snapboxhq/snapbox/internal/pkg/env"
)

// MaintenanceTokenHeader carries the shared secret for housekeeping endpoints
const MaintenanceTokenHeader = "X-Maintenance-Token"

// MaintenanceAuthMiddleware guards the cleanup endpoints with a shared token.
func MaintenanceAuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		expected := env.GetEnv("MAINTENANCE_TOKEN", "")
		if expected == "" {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error":   "internal_server_error",
				"message": "Maintenance token not configured",
			})
		}

		provided := strings.TrimSpace(c.Get(MaintenanceTokenHeader))
		if provided == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   "unauthorized",
				"message": "Missing maintenance token",
			})
		}

		if subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) != 1 {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error":   "forbidden",
				"message": "Invalid maintenance token",
			})
		}

		return c.Next()
	}
}
