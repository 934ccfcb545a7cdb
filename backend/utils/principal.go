package utils

import (
	"github.com/gofiber/fiber/v2"

	"academy/backend/access"
)

const principalKey = "principal"

func SetPrincipal(c *fiber.Ctx, p access.Principal) {
	c.Locals(principalKey, p)
}

// Principal returns the caller set by the auth middleware, or anonymous.
func Principal(c *fiber.Ctx) access.Principal {
	if p, ok := c.Locals(principalKey).(access.Principal); ok {
		return p
	}
	return access.Anonymous()
}
