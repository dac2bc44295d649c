package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v3"
)

const userIDKey = "user_id"

const maxUserIDLength = 128

// RequireUser provides mock Bearer token authentication: the token is taken as the user id.
// Upstream auth is expected to have issued it.
func RequireUser() fiber.Handler {
	return func(c fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing Authorization header",
			})
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid Authorization header format, expected 'Bearer <token>'",
			})
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "empty bearer token",
			})
		}
		if len(token) > maxUserIDLength || strings.ContainsAny(token, " \t") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "malformed bearer token",
			})
		}

		c.Locals(userIDKey, token)
		return c.Next()
	}
}

// UserID returns the authenticated user id, or "" outside RequireUser.
func UserID(c fiber.Ctx) string {
	uid, _ := c.Locals(userIDKey).(string)
	return uid
}
