package routes

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Sweyy-goat/QuickId/internal/config"
	"github.com/Sweyy-goat/QuickId/internal/logging"
)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	cfg := config.Config{
		AppName:           "QuickId",
		AppEnv:            "dev",
		SessionSecret:     "test_secret",
		SessionTTL:        30 * time.Minute,
		IdempotencyTTL:    time.Minute,
		EnrollThreshold:   0.5,
		IdentifyThreshold: 0.6,
		SignupBonus:       100,
		LockTimeout:       time.Second,
		DescriptorLen:     3,
	}

	app := fiber.New()
	if err := Setup(app, Deps{Cfg: cfg, Logger: logging.Discard()}); err != nil {
		t.Fatalf("route setup failed: %v", err)
	}
	return app
}

// doJSON sends a JSON request through the test app and decodes the JSON reply.
func doJSON(t *testing.T, app *fiber.App, method, path, token string, body any) (int, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode request: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	resp, err := app.Test(req, 5000)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("%s %s: read response: %v", method, path, err)
	}

	// Error responses from fiber.NewError are plain text; wrap them so callers
	// can still assert on the message.
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		decoded = map[string]any{"error": string(raw)}
	}
	return resp.StatusCode, decoded
}

func enroll(t *testing.T, app *fiber.App, name, contact string, desc []float64) int64 {
	t.Helper()
	status, body := doJSON(t, app, fiber.MethodPost, "/api/v1/enroll", "", fiber.Map{
		"name":       name,
		"contact":    contact,
		"descriptor": desc,
	})
	if status != http.StatusCreated {
		t.Fatalf("enroll %s: expected 201, got %d (%v)", name, status, body)
	}
	id, ok := body["identity_id"].(float64)
	if !ok {
		t.Fatalf("enroll %s: missing identity_id in %v", name, body)
	}
	return int64(id)
}

func identify(t *testing.T, app *fiber.App, desc []float64) (int64, string) {
	t.Helper()
	status, body := doJSON(t, app, fiber.MethodPost, "/api/v1/identify", "", fiber.Map{
		"descriptor": desc,
	})
	if status != http.StatusOK {
		t.Fatalf("identify: expected 200, got %d (%v)", status, body)
	}
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatalf("identify: missing token in %v", body)
	}
	id, _ := body["identity_id"].(float64)
	return int64(id), token
}

func TestEnrollIdentifyTransferFlow(t *testing.T) {
	app := newTestApp(t)

	aliceID := enroll(t, app, "Alice", "alice@example.com", []float64{0, 0, 0})
	bobID := enroll(t, app, "Bob", "bob@example.com", []float64{5, 5, 5})

	gotID, token := identify(t, app, []float64{0, 0, 0.1})
	if gotID != aliceID {
		t.Fatalf("expected identification to resolve Alice (%d), got %d", aliceID, gotID)
	}

	status, body := doJSON(t, app, fiber.MethodPost, "/api/v1/transfer", token, fiber.Map{
		"descriptor": []float64{5, 5, 5},
		"amount":     40,
	})
	if status != http.StatusCreated {
		t.Fatalf("transfer: expected 201, got %d (%v)", status, body)
	}
	if int64(body["recipient_id"].(float64)) != bobID {
		t.Fatalf("expected recipient %d, got %v", bobID, body["recipient_id"])
	}
	if body["sender_balance"].(float64) != 60 {
		t.Fatalf("expected sender balance 60, got %v", body["sender_balance"])
	}

	// Profile reflects the debit.
	status, body = doJSON(t, app, fiber.MethodGet, "/api/v1/me", token, nil)
	if status != http.StatusOK {
		t.Fatalf("me: expected 200, got %d (%v)", status, body)
	}
	if body["name"] != "Alice" {
		t.Fatalf("expected profile for Alice, got %v", body)
	}
	if body["balance"].(float64) != 60 {
		t.Fatalf("expected balance 60 on profile, got %v", body["balance"])
	}

	// History holds the single transfer.
	status, body = doJSON(t, app, fiber.MethodGet, "/api/v1/me/transfers", token, nil)
	if status != http.StatusOK {
		t.Fatalf("history: expected 200, got %d (%v)", status, body)
	}
	items, ok := body["transfers"].([]any)
	if !ok || len(items) != 1 {
		t.Fatalf("expected one transfer in history, got %v", body)
	}
	record := items[0].(map[string]any)
	if record["amount"].(float64) != 40 {
		t.Fatalf("unexpected history record: %v", record)
	}
}

func TestIdentifyUnknownProbe(t *testing.T) {
	app := newTestApp(t)
	enroll(t, app, "Alice", "alice@example.com", []float64{0, 0, 0})

	status, body := doJSON(t, app, fiber.MethodPost, "/api/v1/identify", "", fiber.Map{
		"descriptor": []float64{9, 9, 9},
	})
	if status != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown probe, got %d (%v)", status, body)
	}
	if _, ok := body["best_distance"].(float64); !ok {
		t.Fatalf("expected best_distance in rejection, got %v", body)
	}
}

func TestEnrollDuplicateBiometricConflict(t *testing.T) {
	app := newTestApp(t)
	enroll(t, app, "Alice", "alice@example.com", []float64{1, 1, 1})

	status, body := doJSON(t, app, fiber.MethodPost, "/api/v1/enroll", "", fiber.Map{
		"name":       "Mallory",
		"contact":    "mallory@example.com",
		"descriptor": []float64{1, 1, 1.1},
	})
	if status != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate biometric, got %d (%v)", status, body)
	}
	if _, ok := body["distance"].(float64); !ok {
		t.Fatalf("expected distance in conflict payload, got %v", body)
	}
}

func TestEnrollValidation(t *testing.T) {
	app := newTestApp(t)

	// Missing name.
	status, _ := doJSON(t, app, fiber.MethodPost, "/api/v1/enroll", "", fiber.Map{
		"contact":    "a@b.c",
		"descriptor": []float64{0, 0, 0},
	})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing name, got %d", status)
	}

	// Missing descriptor.
	status, _ = doJSON(t, app, fiber.MethodPost, "/api/v1/enroll", "", fiber.Map{
		"name":    "Alice",
		"contact": "a@b.c",
	})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing descriptor, got %d", status)
	}

	// Wrong descriptor length.
	status, _ = doJSON(t, app, fiber.MethodPost, "/api/v1/enroll", "", fiber.Map{
		"name":       "Alice",
		"contact":    "a@b.c",
		"descriptor": []float64{0, 0},
	})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for short descriptor, got %d", status)
	}
}

func TestCheckEndpoint(t *testing.T) {
	app := newTestApp(t)
	aliceID := enroll(t, app, "Alice", "alice@example.com", []float64{2, 2, 2})

	status, body := doJSON(t, app, fiber.MethodPost, "/api/v1/check", "", fiber.Map{
		"descriptor": []float64{2, 2, 2.1},
	})
	if status != http.StatusOK {
		t.Fatalf("check: expected 200, got %d (%v)", status, body)
	}
	if body["enrolled"] != true || int64(body["identity_id"].(float64)) != aliceID {
		t.Fatalf("expected enrolled=true for Alice, got %v", body)
	}

	status, body = doJSON(t, app, fiber.MethodPost, "/api/v1/check", "", fiber.Map{
		"descriptor": []float64{50, 50, 50},
	})
	if status != http.StatusOK {
		t.Fatalf("check: expected 200, got %d (%v)", status, body)
	}
	if body["enrolled"] != false {
		t.Fatalf("expected enrolled=false for unknown probe, got %v", body)
	}
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	app := newTestApp(t)

	status, _ := doJSON(t, app, fiber.MethodPost, "/api/v1/transfer", "", fiber.Map{
		"descriptor": []float64{1, 2, 3},
		"amount":     10,
	})
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", status)
	}

	status, _ = doJSON(t, app, fiber.MethodGet, "/api/v1/me", "not-a-token", nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401 with a bogus token, got %d", status)
	}
}

func TestTransferErrorMapping(t *testing.T) {
	app := newTestApp(t)

	enroll(t, app, "Alice", "alice@example.com", []float64{0, 0, 0})
	enroll(t, app, "Bob", "bob@example.com", []float64{5, 5, 5})
	_, token := identify(t, app, []float64{0, 0, 0})

	// Insufficient funds.
	status, _ := doJSON(t, app, fiber.MethodPost, "/api/v1/transfer", token, fiber.Map{
		"descriptor": []float64{5, 5, 5},
		"amount":     1000,
	})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for insufficient funds, got %d", status)
	}

	// Self transfer.
	status, _ = doJSON(t, app, fiber.MethodPost, "/api/v1/transfer", token, fiber.Map{
		"descriptor": []float64{0, 0, 0},
		"amount":     10,
	})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for self transfer, got %d", status)
	}

	// Unknown recipient.
	status, body := doJSON(t, app, fiber.MethodPost, "/api/v1/transfer", token, fiber.Map{
		"descriptor": []float64{99, 99, 99},
		"amount":     10,
	})
	if status != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown recipient, got %d (%v)", status, body)
	}

	// Duplicate client_tx_id.
	payload := fiber.Map{
		"descriptor":   []float64{5, 5, 5},
		"amount":       10,
		"client_tx_id": "retry-1",
	}
	if status, _ := doJSON(t, app, fiber.MethodPost, "/api/v1/transfer", token, payload); status != http.StatusCreated {
		t.Fatalf("expected first transfer to commit, got %d", status)
	}
	if status, _ := doJSON(t, app, fiber.MethodPost, "/api/v1/transfer", token, payload); status != http.StatusConflict {
		t.Fatalf("expected 409 for replayed client_tx_id, got %d", status)
	}
}

func TestPingReportsRequestID(t *testing.T) {
	app := newTestApp(t)

	status, body := doJSON(t, app, fiber.MethodGet, "/api/v1/ping", "", nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if body["status"] != "ok" {
		t.Fatalf("unexpected ping payload: %v", body)
	}
	if reqID, _ := body["request_id"].(string); reqID == "" {
		t.Fatal("expected a request id in the ping payload")
	}
}
