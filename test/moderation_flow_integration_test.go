package test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"promptguard/internal/config"
	"promptguard/internal/models"
	"promptguard/internal/server"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const integrationSecret = "integration-secret-0123456789abcdef0123456789"

func newModerationTestApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()
	t.Setenv("APP_ENV", "test")

	cfg := &config.Config{
		Env:                    "test",
		Port:                   "0",
		JWTSecret:              integrationSecret,
		ModerationWindowHours:  24,
		ModerationHighRepeat:   1,
		ModerationMediumRepeat: 2,
		ModerationTermCount:    2,
		ModerationHardCeiling:  10,
		ModerationContentCap:   1000,
		HistoryCacheTTLSeconds: 30,
	}

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.Violation{}); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	srv, err := server.NewServerWithDeps(cfg, db, rdb)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	app := fiber.New()
	srv.SetupMiddleware(app)
	srv.SetupRoutes(app)
	return app, db
}

func serviceToken(t *testing.T, subject string, admin bool) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub": subject,
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	if admin {
		claims["admin"] = true
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(integrationSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func authReq(t *testing.T, method, path, token string, payload any) *http.Request {
	t.Helper()
	var req *http.Request
	if payload == nil {
		req = httptest.NewRequest(method, path, nil)
	} else {
		body, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func decode(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestModerationFlow(t *testing.T) {
	app, db := newModerationTestApp(t)
	token := serviceToken(t, "storefront-api", false)
	adminToken := serviceToken(t, "moderation-console", true)

	t.Run("rejects unauthenticated callers", func(t *testing.T) {
		resp, err := app.Test(authReq(t, http.MethodPost, "/api/moderation/check", "",
			map[string]string{"text": "anything"}), -1)
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", resp.StatusCode)
		}
		_ = resp.Body.Close()
	})

	t.Run("clean prompt passes the check", func(t *testing.T) {
		resp, err := app.Test(authReq(t, http.MethodPost, "/api/moderation/check", token,
			map[string]string{"text": "a low-poly fox figurine"}), -1)
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}

		var verdict struct {
			IsInappropriate bool `json:"is_inappropriate"`
		}
		decode(t, resp, &verdict)
		if verdict.IsInappropriate {
			t.Fatal("clean prompt must pass")
		}

		// A clean check never writes to the ledger.
		var count int64
		if err := db.Model(&models.Violation{}).Count(&count).Error; err != nil {
			t.Fatalf("count violations: %v", err)
		}
		if count != 0 {
			t.Fatalf("expected empty ledger after clean check, found %d rows", count)
		}
	})

	t.Run("flagged prompt, recorded violation, gated user", func(t *testing.T) {
		resp, err := app.Test(authReq(t, http.MethodPost, "/api/moderation/check", token,
			map[string]string{"text": "a naked person on a beach"}), -1)
		if err != nil {
			t.Fatalf("check app.Test: %v", err)
		}
		var verdict struct {
			IsInappropriate bool     `json:"is_inappropriate"`
			FoundTerms      []string `json:"found_terms"`
		}
		decode(t, resp, &verdict)
		if !verdict.IsInappropriate || len(verdict.FoundTerms) == 0 {
			t.Fatalf("expected flagged verdict, got %+v", verdict)
		}

		resp, err = app.Test(authReq(t, http.MethodPost, "/api/moderation/violations", token,
			map[string]any{
				"user_id":     "buyer-17",
				"content":     "a naked person on a beach",
				"found_terms": verdict.FoundTerms,
			}), -1)
		if err != nil {
			t.Fatalf("record app.Test: %v", err)
		}
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("expected 201, got %d", resp.StatusCode)
		}
		var record struct {
			Severity    string `json:"severity"`
			Action      string `json:"action"`
			ShouldBlock bool   `json:"should_block"`
		}
		decode(t, resp, &record)
		if record.Severity != "critical" || record.Action != "account_suspended" || !record.ShouldBlock {
			t.Fatalf("unexpected enforcement decision: %+v", record)
		}

		resp, err = app.Test(authReq(t, http.MethodGet, "/api/moderation/users/buyer-17/history", token, nil), -1)
		if err != nil {
			t.Fatalf("history app.Test: %v", err)
		}
		var history struct {
			ShouldBlock    bool  `json:"should_block"`
			ViolationCount int64 `json:"violation_count"`
		}
		decode(t, resp, &history)
		if !history.ShouldBlock || history.ViolationCount != 1 {
			t.Fatalf("expected gated user, got %+v", history)
		}
	})

	t.Run("admin audit requires the admin claim", func(t *testing.T) {
		resp, err := app.Test(authReq(t, http.MethodGet, "/api/admin/violations", token, nil), -1)
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}
		if resp.StatusCode != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", resp.StatusCode)
		}
		_ = resp.Body.Close()

		resp, err = app.Test(authReq(t, http.MethodGet, "/api/admin/violations", adminToken, nil), -1)
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		var page struct {
			Total int64 `json:"total"`
		}
		decode(t, resp, &page)
		if page.Total != 1 {
			t.Fatalf("expected 1 recorded violation, got %d", page.Total)
		}
	})

	t.Run("health endpoints", func(t *testing.T) {
		for _, path := range []string{"/health/live", "/health/ready"} {
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil), -1)
			if err != nil {
				t.Fatalf("app.Test %s: %v", path, err)
			}
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("%s: expected 200, got %d", path, resp.StatusCode)
			}
			_ = resp.Body.Close()
		}
	})
}
