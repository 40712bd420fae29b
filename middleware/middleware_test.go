package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

func newApp(token string) *fiber.App {
	app := fiber.New()
	app.Use(RequestContextMiddleware())
	app.Use(GatewayAuthMiddleware(token, "/api/health"))
	app.Get("/api/health", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/api/thing", func(c *fiber.Ctx) error { return c.SendString("thing") })
	return app
}

func TestGatewayAuthDisabledWithoutToken(t *testing.T) {
	resp, err := newApp("").Test(httptest.NewRequest("GET", "/api/thing", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestGatewayAuthEnforced(t *testing.T) {
	app := newApp("s3cret")

	cases := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"missing header", "/api/thing", "", fiber.StatusUnauthorized},
		{"wrong token", "/api/thing", "Bearer nope", fiber.StatusUnauthorized},
		{"bearer token", "/api/thing", "Bearer s3cret", fiber.StatusOK},
		{"raw token", "/api/thing", "s3cret", fiber.StatusOK},
		{"health skipped", "/api/health", "", fiber.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("request: %v", err)
			}
			if resp.StatusCode != tc.want {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tc.want)
			}
		})
	}
}

func TestRequestIDIsGeneratedOrKept(t *testing.T) {
	app := newApp("")

	resp, err := app.Test(httptest.NewRequest("GET", "/api/health", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if _, err := uuid.Parse(resp.Header.Get(HeaderRequestID)); err != nil {
		t.Fatalf("generated request id %q is not a uuid", resp.Header.Get(HeaderRequestID))
	}

	id := uuid.NewString()
	req := httptest.NewRequest("GET", "/api/health", nil)
	req.Header.Set(HeaderRequestID, id)
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if got := resp.Header.Get(HeaderRequestID); got != id {
		t.Fatalf("request id = %q, want %q", got, id)
	}
}
