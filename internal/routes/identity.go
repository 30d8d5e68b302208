package routes

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/Sweyy-goat/QuickId/internal/descriptor"
	"github.com/Sweyy-goat/QuickId/internal/identity"
	"github.com/Sweyy-goat/QuickId/internal/session"
)

// RegisterIdentityRoutes wires enrollment, identification and the enrollment
// probe check.
func RegisterIdentityRoutes(r fiber.Router, ids *identity.Service, sessions *session.Manager, descriptorLen int, identifyLimiter fiber.Handler, logger *slog.Logger) {
	r.Post("/enroll", func(c *fiber.Ctx) error {
		var req struct {
			Name       string    `json:"name"`
			Contact    string    `json:"contact"`
			Descriptor []float64 `json:"descriptor"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}

		probe, err := probeFrom(req.Descriptor, descriptorLen)
		if err != nil {
			return err
		}

		ident, err := ids.Enroll(c.UserContext(), identity.EnrollInput{
			Name:    req.Name,
			Contact: req.Contact,
			Probe:   probe,
		})
		if err != nil {
			var dup *identity.DuplicateBiometricError
			switch {
			case errors.Is(err, identity.ErrMissingField):
				return fiber.NewError(http.StatusBadRequest, "name and contact are required")
			case errors.Is(err, descriptor.ErrNoBiometric):
				return fiber.NewError(http.StatusBadRequest, "no biometric detected")
			case errors.Is(err, identity.ErrDuplicateContact):
				return fiber.NewError(http.StatusConflict, "contact already registered")
			case errors.As(err, &dup):
				return c.Status(http.StatusConflict).JSON(fiber.Map{
					"error":    "biometric already enrolled",
					"distance": dup.Distance,
				})
			default:
				return fiber.NewError(http.StatusInternalServerError, "storage failure")
			}
		}

		if logger != nil {
			logger.Info("identity enrolled",
				slog.Int64("identity_id", ident.ID),
				slog.String("contact", ident.Contact),
				slog.Float64("balance", ident.Balance),
			)
		}
		return c.Status(http.StatusCreated).JSON(fiber.Map{
			"identity_id": ident.ID,
			"name":        ident.Name,
			"balance":     ident.Balance,
		})
	})

	r.Post("/identify", identifyLimiter, func(c *fiber.Ctx) error {
		var req struct {
			Descriptor []float64 `json:"descriptor"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}

		probe, err := probeFrom(req.Descriptor, descriptorLen)
		if err != nil {
			return err
		}

		ident, dist, err := ids.Identify(c.UserContext(), probe)
		if err != nil {
			var noMatch *identity.NoMatchError
			if errors.As(err, &noMatch) {
				payload := fiber.Map{"error": "no matching identity"}
				if noMatch.Found {
					payload["best_distance"] = noMatch.BestDistance
				}
				return c.Status(http.StatusNotFound).JSON(payload)
			}
			return fiber.NewError(http.StatusInternalServerError, "storage failure")
		}

		token, err := sessions.Issue(ident.ID, ident.Name)
		if err != nil {
			return fiber.NewError(http.StatusInternalServerError, "session failure")
		}

		return c.Status(http.StatusOK).JSON(fiber.Map{
			"identity_id": ident.ID,
			"name":        ident.Name,
			"balance":     ident.Balance,
			"distance":    dist,
			"token":       token,
			"expires_in":  int64(sessions.TTL().Seconds()),
		})
	})

	r.Post("/check", func(c *fiber.Ctx) error {
		var req struct {
			Descriptor []float64 `json:"descriptor"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}

		probe, err := probeFrom(req.Descriptor, descriptorLen)
		if err != nil {
			return err
		}

		enrolled, id, err := ids.CheckEnrolled(c.UserContext(), probe)
		if err != nil {
			return fiber.NewError(http.StatusInternalServerError, "storage failure")
		}

		payload := fiber.Map{"enrolled": enrolled}
		if enrolled {
			payload["identity_id"] = id
		}
		return c.JSON(payload)
	})
}

// probeFrom validates the request descriptor, mapping boundary failures to
// HTTP errors.
func probeFrom(raw []float64, wantLen int) (descriptor.Descriptor, error) {
	probe, err := descriptor.Probe(raw, wantLen)
	if err != nil {
		if errors.Is(err, descriptor.ErrNoBiometric) {
			return nil, fiber.NewError(http.StatusBadRequest, "no biometric detected")
		}
		return nil, fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return probe, nil
}
