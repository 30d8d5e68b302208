package middleware

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/Sweyy-goat/QuickId/internal/session"
)

// SessionAuth validates the bearer session token minted at identification and
// stores the authenticated identity id in request locals. No ambient session
// state: every request carries its own identity.
func SessionAuth(mgr *session.Manager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		token := strings.TrimSpace(authz[len("Bearer "):])

		identityID, claims, err := mgr.Verify(token)
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "invalid session token")
		}

		c.Locals("identity_id", identityID)
		c.Locals("identity_name", claims.Name)
		return c.Next()
	}
}
