package transfers

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/Sweyy-goat/QuickId/internal/descriptor"
	"github.com/Sweyy-goat/QuickId/internal/identity"
	"github.com/Sweyy-goat/QuickId/internal/ledger"
)

// Handler exposes transfer endpoints.
type Handler struct {
	service *Service
	probes  int // expected descriptor length
}

// NewHandler constructs a transfer handler.
func NewHandler(service *Service, descriptorLen int) *Handler {
	return &Handler{service: service, probes: descriptorLen}
}

type payRequest struct {
	Descriptor []float64 `json:"descriptor"`
	Amount     float64   `json:"amount"`
	ClientTxID string    `json:"client_tx_id"`
}

// Pay scans the recipient probe and moves the amount from the authenticated
// sender.
func (h *Handler) Pay(c *fiber.Ctx) error {
	senderID, ok := c.Locals("identity_id").(int64)
	if !ok || senderID == 0 {
		return fiber.NewError(http.StatusUnauthorized, "authentication required")
	}

	var req payRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	probe, err := descriptor.Probe(req.Descriptor, h.probes)
	if err != nil {
		if errors.Is(err, descriptor.ErrNoBiometric) {
			return fiber.NewError(http.StatusBadRequest, "no biometric detected")
		}
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	res, err := h.service.PayTo(c.UserContext(), PayInput{
		SenderID:   senderID,
		Probe:      probe,
		Amount:     req.Amount,
		ClientTxID: req.ClientTxID,
	})
	if err != nil {
		var noMatch *identity.NoMatchError
		switch {
		case errors.As(err, &noMatch):
			payload := fiber.Map{"error": "recipient not found"}
			if noMatch.Found {
				payload["best_distance"] = noMatch.BestDistance
			}
			return c.Status(http.StatusNotFound).JSON(payload)
		case errors.Is(err, ledger.ErrInvalidAmount):
			return fiber.NewError(http.StatusBadRequest, "amount must be positive")
		case errors.Is(err, ledger.ErrSelfTransfer):
			return fiber.NewError(http.StatusBadRequest, "cannot transfer to yourself")
		case errors.Is(err, ledger.ErrInsufficientFunds):
			return fiber.NewError(http.StatusBadRequest, "insufficient funds")
		case errors.Is(err, ledger.ErrDuplicateTransfer):
			return fiber.NewError(http.StatusConflict, "duplicate transfer")
		case errors.Is(err, ledger.ErrAccountNotFound):
			return fiber.NewError(http.StatusNotFound, "account not found")
		case errors.Is(err, ledger.ErrLockTimeout):
			return fiber.NewError(http.StatusServiceUnavailable, "transfer busy, retry later")
		default:
			return fiber.NewError(http.StatusInternalServerError, "storage failure")
		}
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"transfer_id":    res.TransferID,
		"recipient_id":   res.RecipientID,
		"recipient_name": res.RecipientName,
		"amount":         res.Amount,
		"sender_balance": res.SenderBalance,
		"completed_at":   res.CompletedAt,
	})
}

// History returns the authenticated identity's recent transfers.
func (h *Handler) History(c *fiber.Ctx) error {
	identityID, ok := c.Locals("identity_id").(int64)
	if !ok || identityID == 0 {
		return fiber.NewError(http.StatusUnauthorized, "authentication required")
	}

	limit := c.QueryInt("limit", 20)
	records, err := h.service.History(c.UserContext(), identityID, limit)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, "storage failure")
	}

	items := make([]fiber.Map, 0, len(records))
	for _, r := range records {
		items = append(items, fiber.Map{
			"transfer_id":  r.ID,
			"sender_id":    r.SenderID,
			"recipient_id": r.RecipientID,
			"amount":       r.Amount,
			"created_at":   r.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"transfers": items})
}
