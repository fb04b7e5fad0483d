package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"promptguard/internal/config"
	"promptguard/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
)

const testSecret = "test-secret-key-12345678901234567890123456789012"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func TestAuthRequired(t *testing.T) {
	app := fiber.New()
	InitMiddleware(&config.Config{JWTSecret: testSecret})

	app.Get("/test", AuthRequired, func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"subject": c.Locals("subject")})
	})

	serviceToken := func(subject string, exp time.Duration) string {
		return signToken(t, jwt.MapClaims{
			"sub": subject,
			"exp": time.Now().Add(exp).Unix(),
		})
	}

	tests := []struct {
		name            string
		authHeader      string
		expectedStatus  int
		expectedSubject string
	}{
		{
			name:            "valid service token",
			authHeader:      "Bearer " + serviceToken("storefront-api", time.Hour),
			expectedStatus:  http.StatusOK,
			expectedSubject: "storefront-api",
		},
		{
			name:           "missing header",
			authHeader:     "",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "wrong scheme",
			authHeader:     "Basic dXNlcjpwYXNz",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "malformed token",
			authHeader:     "Bearer malformed.token.here",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "expired token",
			authHeader:     "Bearer " + serviceToken("storefront-api", -time.Hour),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name: "missing subject claim",
			authHeader: "Bearer " + signToken(t, jwt.MapClaims{
				"exp": time.Now().Add(time.Hour).Unix(),
			}),
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}

			resp, err := app.Test(req)
			assert.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.expectedStatus == http.StatusOK {
				var body map[string]interface{}
				if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
					assert.Equal(t, tt.expectedSubject, body["subject"])
				}
			} else {
				// Rejections use the standard error envelope.
				var errResp models.ErrorResponse
				if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil {
					assert.Equal(t, "UNAUTHORIZED", errResp.Code)
					assert.NotEmpty(t, errResp.Error)
				}
			}
		})
	}
}

func TestAdminRequired(t *testing.T) {
	app := fiber.New()
	InitMiddleware(&config.Config{JWTSecret: testSecret})

	app.Get("/admin", AuthRequired, AdminRequired, func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	tests := []struct {
		name           string
		claims         jwt.MapClaims
		expectedStatus int
	}{
		{
			name: "admin claim true",
			claims: jwt.MapClaims{
				"sub":   "moderation-console",
				"admin": true,
				"exp":   time.Now().Add(time.Hour).Unix(),
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "admin claim false",
			claims: jwt.MapClaims{
				"sub":   "storefront-api",
				"admin": false,
				"exp":   time.Now().Add(time.Hour).Unix(),
			},
			expectedStatus: http.StatusForbidden,
		},
		{
			name: "admin claim absent",
			claims: jwt.MapClaims{
				"sub": "storefront-api",
				"exp": time.Now().Add(time.Hour).Unix(),
			},
			expectedStatus: http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			req.Header.Set("Authorization", "Bearer "+signToken(t, tt.claims))

			resp, err := app.Test(req)
			assert.NoError(t, err)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
			_ = resp.Body.Close()
		})
	}
}
