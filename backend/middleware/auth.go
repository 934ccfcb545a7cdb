package middleware

import (
	"context"
	"errors"

	"academy/backend/access"
	"academy/backend/apperr"
	"academy/backend/config"
	"academy/backend/models"
	"academy/backend/utils"

	"github.com/gofiber/fiber/v2"
)

// UserFinder loads the account a token was issued for.
type UserFinder interface {
	FindUser(ctx context.Context, id uint) (*models.User, error)
}

// Authenticate resolves the caller from the Authorization header. Requests
// without a token continue as anonymous; an invalid token is rejected.
// Roles are read from the stored account, so a deleted or demoted user
// loses access on the next request.
func Authenticate(cfg *config.Config, users UserFinder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Get(fiber.HeaderAuthorization) == "" {
			utils.SetPrincipal(c, access.Anonymous())
			return c.Next()
		}

		claims, err := utils.ExtractClaimsFromToken(c, cfg)
		if err != nil {
			return utils.Unauthorized(c, "Invalid token")
		}
		user, err := users.FindUser(c.UserContext(), claims.UserID)
		if errors.Is(err, apperr.ErrNotFound) {
			return utils.Unauthorized(c, "Invalid token")
		}
		if err != nil {
			return utils.HandleError(c, err)
		}

		roles := make([]access.Role, 0, len(user.Roles))
		for _, r := range user.Roles {
			roles = append(roles, access.Role(r))
		}
		utils.SetPrincipal(c, access.User(user.ID, roles...))
		return c.Next()
	}
}

func RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !utils.Principal(c).Authenticated() {
			return utils.Unauthorized(c, "Authentication required")
		}
		return c.Next()
	}
}

// RequireRole lets through callers holding any of roles. Use after
// Authenticate.
func RequireRole(roles ...access.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p := utils.Principal(c)
		if !p.Authenticated() {
			return utils.Unauthorized(c, "Authentication required")
		}
		for _, r := range roles {
			if p.HasRole(r) {
				return c.Next()
			}
		}
		return utils.Forbidden(c, "Forbidden - insufficient role")
	}
}
