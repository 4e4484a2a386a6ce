package middleware

import (
	"github.com/gofiber/fiber/v2"

	"leadpilot/config"
	"leadpilot/queue"
	"leadpilot/utils"
)

// QueueAuth verifies the HMAC signature the queue service attaches to job
// callbacks. When no signing key is configured (development) the check is
// bypassed.
func QueueAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		signingKey := config.AppConfig.Queue.SigningKey
		if signingKey == "" {
			return c.Next()
		}

		signature := c.Get("X-Queue-Signature")
		if signature == "" || !queue.VerifySignature(signingKey, c.Body(), signature) {
			utils.LogEvent("queue_signature_rejected", map[string]interface{}{
				"path": c.Path(),
				"ip":   c.IP(),
			})
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid job signature",
			})
		}

		return c.Next()
	}
}
