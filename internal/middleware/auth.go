package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/example/bazaar/internal/config"
	"github.com/example/bazaar/internal/utils"
)

const principalContextKey = "currentPrincipal"

// AuthMiddleware validates JWT tokens and loads the authenticated principal
// into context.
func AuthMiddleware(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing authorization header")
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid authorization header")
		}

		principal, err := utils.ParseToken(cfg.JWTSecret, parts[1])
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
		}

		c.Locals(principalContextKey, principal)
		return c.Next()
	}
}

// RequireVendor rejects principals without a vendor scope.
func RequireVendor() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := GetPrincipal(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
		}
		if principal.Role != utils.RoleVendor || principal.VendorID == nil {
			return fiber.NewError(fiber.StatusForbidden, "vendor access required")
		}
		return c.Next()
	}
}

// GetPrincipal extracts the authenticated principal from context.
func GetPrincipal(c *fiber.Ctx) (utils.Principal, bool) {
	value := c.Locals(principalContextKey)
	if value == nil {
		return utils.Principal{}, false
	}

	if p, ok := value.(utils.Principal); ok {
		return p, true
	}

	return utils.Principal{}, false
}
