package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"quest-ledger/services"

	"github.com/gofiber/fiber/v2"
)

func newTestApp(t *testing.T) (*fiber.App, *services.MemoryStore) {
	t.Helper()
	catalog, err := services.LoadCatalog("")
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	store := services.NewMemoryStore()
	ledger := services.NewQuestLedger(store, catalog, time.Second)
	app := fiber.New()
	SetupQuestRoutes(app, ledger, services.NewStoreHealth(store))
	return app, store
}

func do(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	out := map[string]any{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode %s %s: %v", method, path, err)
	}
	return resp.StatusCode, out
}

func TestQuestFlowOverHTTP(t *testing.T) {
	app, _ := newTestApp(t)

	code, user := do(t, app, http.MethodGet, "/api/user/u1", "")
	if code != http.StatusOK || user["points"] != float64(0) || user["userId"] != "u1" {
		t.Fatalf("GET user = %d %v", code, user)
	}

	code, quests := do(t, app, http.MethodGet, "/api/quests/u1", "")
	if code != http.StatusOK {
		t.Fatalf("GET quests = %d", code)
	}
	list := quests["quests"].([]any)
	first := list[0].(map[string]any)
	if first["questId"] != "beincom" || first["status"] != "DO" || first["reward"] != float64(100) {
		t.Fatalf("quest view = %v", first)
	}
	if first["url"] != "http://beincom.com/signup?partyId=tele-bot&uid=u1" {
		t.Fatalf("url = %v", first["url"])
	}

	code, body := do(t, app, http.MethodPost, "/api/quest/claim", `{"userId":"u1","questId":"beincom"}`)
	if code != http.StatusBadRequest || body["error"] != "Quest not ready for claiming" {
		t.Fatalf("early claim = %d %v", code, body)
	}

	code, body = do(t, app, http.MethodPost, "/api/quest/verify", `{"userId":"u1","questId":"beincom"}`)
	if code != http.StatusOK || body["status"] != "verified" {
		t.Fatalf("verify = %d %v", code, body)
	}
	code, body = do(t, app, http.MethodPost, "/api/quest/verify", `{"userId":"u1","questId":"beincom"}`)
	if code != http.StatusOK || body["status"] != "already_verified" {
		t.Fatalf("re-verify = %d %v", code, body)
	}

	_, quests = do(t, app, http.MethodGet, "/api/quests/u1", "")
	if s := quests["quests"].([]any)[0].(map[string]any)["status"]; s != "CLAIM" {
		t.Fatalf("status after verify = %v", s)
	}

	code, body = do(t, app, http.MethodPost, "/api/quest/claim", `{"userId":"u1","questId":"beincom"}`)
	if code != http.StatusOK || body["status"] != "claimed" || body["points"] != float64(100) {
		t.Fatalf("claim = %d %v", code, body)
	}
	code, body = do(t, app, http.MethodPost, "/api/quest/claim", `{"userId":"u1","questId":"beincom"}`)
	if code != http.StatusOK || body["status"] != "already_claimed" || body["points"] != float64(100) {
		t.Fatalf("re-claim = %d %v", code, body)
	}

	code, body = do(t, app, http.MethodGet, "/api/user/u1/events", "")
	if code != http.StatusOK || len(body["events"].([]any)) != 2 {
		t.Fatalf("events = %d %v", code, body)
	}
}

func TestQuestActionValidation(t *testing.T) {
	app, store := newTestApp(t)

	cases := []struct {
		name string
		body string
		want string
	}{
		{"not json", `hello`, "request body must be a JSON object"},
		{"array", `[1,2]`, "request body must be a JSON object"},
		{"missing user", `{"questId":"beincom"}`, "userId is required"},
		{"wrong user type", `{"userId":7,"questId":"beincom"}`, ""},
		{"missing quest", `{"userId":"u1"}`, "questId is required"},
		{"unknown quest", `{"userId":"u1","questId":"moon"}`, "Invalid quest ID"},
		{"fractional telegram id", `{"telegramId":1.5,"questId":"beincom"}`, "telegramId must be a string or an integer"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, body := do(t, app, http.MethodPost, "/api/quest/verify", tc.body)
			if code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400 (%v)", code, body)
			}
			if tc.want != "" && body["error"] != tc.want {
				t.Fatalf("error = %v, want %q", body["error"], tc.want)
			}
		})
	}
	if store.Writes() != 0 {
		t.Fatalf("rejected requests wrote to the store")
	}
}

func TestLegacyTelegramIDField(t *testing.T) {
	app, _ := newTestApp(t)

	code, body := do(t, app, http.MethodPost, "/api/quest/verify", `{"telegramId":123456789,"questId":"beincom"}`)
	if code != http.StatusOK || body["status"] != "verified" {
		t.Fatalf("verify = %d %v", code, body)
	}
	_, user := do(t, app, http.MethodGet, "/api/user/123456789", "")
	if user["questState"].(map[string]any)["beincom"] != "VERIFIED" {
		t.Fatalf("user = %v", user)
	}
}

func TestStoreFailureHidesDetails(t *testing.T) {
	app, store := newTestApp(t)
	store.Close()

	code, body := do(t, app, http.MethodGet, "/api/user/u1", "")
	if code != http.StatusInternalServerError || body["error"] != "Failed to get user data" {
		t.Fatalf("GET user = %d %v", code, body)
	}
	code, body = do(t, app, http.MethodPost, "/api/quest/claim", `{"userId":"u1","questId":"beincom"}`)
	if code != http.StatusInternalServerError || body["error"] != "Failed to claim quest reward" {
		t.Fatalf("claim = %d %v", code, body)
	}
}

func TestHealth(t *testing.T) {
	catalog, _ := services.LoadCatalog("")
	store := services.NewMemoryStore()
	health := services.NewStoreHealth(store)
	app := fiber.New()
	SetupQuestRoutes(app, services.NewQuestLedger(store, catalog, time.Second), health)

	code, body := do(t, app, http.MethodGet, "/api/health", "")
	if code != http.StatusOK || body["status"] != "OK" {
		t.Fatalf("health = %d %v", code, body)
	}

	store.Close()
	_ = health.Probe(context.Background(), time.Second)
	code, body = do(t, app, http.MethodGet, "/api/health", "")
	if code != http.StatusServiceUnavailable || body["status"] != "DEGRADED" {
		t.Fatalf("health = %d %v", code, body)
	}
}

func TestPaddedUserIDsShareARecord(t *testing.T) {
	app, _ := newTestApp(t)

	code, body := do(t, app, http.MethodPost, "/api/quest/verify", `{"userId":" u1","questId":"beincom"}`)
	if code != http.StatusOK || body["status"] != "verified" {
		t.Fatalf("verify = %d %v", code, body)
	}

	code, user := do(t, app, http.MethodGet, "/api/user/%20u1", "")
	if code != http.StatusOK || user["userId"] != "u1" {
		t.Fatalf("GET user = %d %v", code, user)
	}
	if user["questState"].(map[string]any)["beincom"] != "VERIFIED" {
		t.Fatalf("padded path id reached a different record: %v", user)
	}
}
