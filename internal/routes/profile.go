package routes

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/Sweyy-goat/QuickId/internal/identity"
)

// RegisterProfileRoutes exposes the authenticated identity's own record.
func RegisterProfileRoutes(r fiber.Router, ids *identity.Service) {
	r.Get("/me", func(c *fiber.Ctx) error {
		identityID, ok := c.Locals("identity_id").(int64)
		if !ok || identityID == 0 {
			return fiber.NewError(http.StatusUnauthorized, "authentication required")
		}

		ident, err := ids.Get(c.UserContext(), identityID)
		if err != nil {
			if errors.Is(err, identity.ErrNotFound) {
				return fiber.NewError(http.StatusUnauthorized, "identity not found")
			}
			return fiber.NewError(http.StatusInternalServerError, "storage failure")
		}

		payload := fiber.Map{
			"identity_id": ident.ID,
			"name":        ident.Name,
			"contact":     ident.Contact,
			"balance":     ident.Balance,
			"created_at":  ident.CreatedAt,
		}
		if ident.LastTransferAt != nil {
			payload["last_transfer_at"] = ident.LastTransferAt
		}
		return c.JSON(payload)
	})
}
