package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/Sweyy-goat/QuickId/internal/config"
	"github.com/Sweyy-goat/QuickId/internal/identity"
	"github.com/Sweyy-goat/QuickId/internal/ledger"
	"github.com/Sweyy-goat/QuickId/internal/middleware"
	"github.com/Sweyy-goat/QuickId/internal/notification"
	"github.com/Sweyy-goat/QuickId/internal/session"
	"github.com/Sweyy-goat/QuickId/internal/transfers"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Enforce DB/Redis presence outside of dev, even though main also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)

	// Backends: Postgres when configured, in-memory otherwise (dev/tests).
	var (
		repo          identity.Repository
		ledgerBackend ledger.Ledger
	)
	if d.DB != nil {
		repo = identity.NewPostgresRepository(d.DB)
		ledgerBackend = ledger.NewPostgresLedger(d.DB, d.Cfg.LockTimeout)
	} else {
		memRepo := identity.NewMemoryRepository()
		repo = memRepo
		ledgerBackend = ledger.NewInMemory(memRepo, d.Cfg.LockTimeout)
	}

	identitySvc := identity.NewService(repo, identity.Thresholds{
		Enroll:   d.Cfg.EnrollThreshold,
		Identify: d.Cfg.IdentifyThreshold,
	}, d.Cfg.SignupBonus)

	sessions := session.NewManager(d.Cfg.SessionSecret, d.Cfg.SessionTTL, d.Cfg.AppName)
	notifier := notification.NewLoggerNotifier(d.Logger)
	transferSvc := transfers.NewService(identitySvc, ledgerBackend, notifier)
	transferHandler := transfers.NewHandler(transferSvc, d.Cfg.DescriptorLen)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// Public routes. Identification is rate limited per IP; enrollment and
	// identification need no session.
	identifyLimiter := middleware.IdentifyRateLimit(d.Cache, 10)
	RegisterIdentityRoutes(api, identitySvc, sessions, d.Cfg.DescriptorLen, identifyLimiter, d.Logger)

	// Protected routes carry the session minted at identification. Unsafe
	// methods additionally pass the idempotency barrier when Redis is up.
	protected := api.Group("", middleware.SessionAuth(sessions))
	if d.Cache != nil {
		protected.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}
	RegisterTransferRoutes(protected, transferHandler)
	RegisterProfileRoutes(protected, identitySvc)

	return nil
}
