package authguard

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/estatedesk/backend/internal/auth"
)

// LocalsUserID is the fiber.Ctx locals key holding the authenticated
// account id.
const LocalsUserID = "user_id"

// New builds the bearer-token guard. Every dashboard route sits behind
// it; the public chat widget routes do not.
func New(authSvc *auth.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get("Authorization")
		if header == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Authorization header required",
			})
		}

		token := strings.TrimPrefix(header, "Bearer ")
		if token == header || token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Bearer token required",
			})
		}

		claims, err := authSvc.VerifyToken(token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		c.Locals(LocalsUserID, claims.UserID)
		c.Locals("token", token)
		return c.Next()
	}
}

// UserID reads the authenticated account id set by the guard.
func UserID(c *fiber.Ctx) string {
	if id, ok := c.Locals(LocalsUserID).(string); ok {
		return id
	}
	return ""
}
