package encryption

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/snapboxhq/snapbox/internal/pkg/env"
)

// ResponseMiddleware wraps successful JSON responses into an encrypted
// envelope of the form {"data": "<base64 ciphertext>"}. Error responses
// stay in the clear so kiosk clients can always show a failure reason.
func ResponseMiddleware() fiber.Handler {
	enabled := env.GetEnv("RESPONSE_ENCRYPTION_ENABLED", "false") == "true"

	var codec *Codec
	if enabled {
		var err error
		codec, err = NewCodec(
			env.GetEnv("RESPONSE_ENCRYPTION_KEY", ""),
			env.GetEnv("RESPONSE_ENCRYPTION_IV", ""),
		)
		if err != nil {
			log.Errorf("[Encryption] Disabled, invalid configuration: %v", err)
			enabled = false
		}
	}

	return func(c *fiber.Ctx) error {
		err := c.Next()
		if err != nil || !enabled {
			return err
		}

		status := c.Response().StatusCode()
		if status < 200 || status >= 300 {
			return nil
		}

		body := c.Response().Body()
		if len(body) == 0 {
			return nil
		}

		encrypted, encErr := codec.Encrypt(body)
		if encErr != nil {
			log.Errorf("[Encryption] Failed to encrypt response: %v", encErr)
			return nil
		}

		envelope, encErr := json.Marshal(fiber.Map{"data": encrypted})
		if encErr != nil {
			log.Errorf("[Encryption] Failed to build envelope: %v", encErr)
			return nil
		}

		c.Response().SetBody(envelope)
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return nil
	}
}
