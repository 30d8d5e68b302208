package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Sweyy-goat/QuickId/internal/transfers"
)

// RegisterTransferRoutes wires the transfer endpoints.
func RegisterTransferRoutes(r fiber.Router, h *transfers.Handler) {
	r.Post("/transfer", h.Pay)
	r.Get("/me/transfers", h.History)
}
