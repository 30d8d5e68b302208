package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

func newRateLimitApp(t *testing.T, cache *redis.Client, maxPerMin int) *fiber.App {
	t.Helper()
	app := fiber.New()
	app.Post("/identify", IdentifyRateLimit(cache, maxPerMin), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	return app
}

func TestIdentifyRateLimitCapsPerIP(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = cache.Close() })

	app := newRateLimitApp(t, cache, 3)

	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/identify", nil))
		if err != nil {
			t.Fatalf("request %d failed: %v", i, err)
		}
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("request %d: expected 200 under the cap, got %d", i, resp.StatusCode)
		}
	}

	resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/identify", nil))
	if err != nil {
		t.Fatalf("request over cap failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusTooManyRequests {
		t.Fatalf("expected 429 past the cap, got %d", resp.StatusCode)
	}

	// The counter expires; a fresh window admits requests again.
	mr.FastForward(61 * time.Second)
	resp, err = app.Test(httptest.NewRequest(fiber.MethodPost, "/identify", nil))
	if err != nil {
		t.Fatalf("request in new window failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200 after the window reset, got %d", resp.StatusCode)
	}
}

func TestIdentifyRateLimitFailsOpen(t *testing.T) {
	// No cache configured at all.
	app := newRateLimitApp(t, nil, 1)
	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/identify", nil))
		if err != nil {
			t.Fatalf("request %d failed: %v", i, err)
		}
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("request %d: expected fail-open 200, got %d", i, resp.StatusCode)
		}
	}

	// Cache configured but unreachable.
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = cache.Close() })
	mr.Close()

	app = newRateLimitApp(t, cache, 1)
	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/identify", nil))
		if err != nil {
			t.Fatalf("request %d failed: %v", i, err)
		}
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("request %d: expected fail-open 200 on cache error, got %d", i, resp.StatusCode)
		}
	}
}
