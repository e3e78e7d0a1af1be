package auth

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"wpx-extend/internal/apperr"
	"wpx-extend/internal/config"
	"wpx-extend/internal/metadata"
	"wpx-extend/internal/store"
)

const secret = "test-secret"

func TestAccessToken_RoundTrip(t *testing.T) {
	tok, err := GenerateAccessToken("u1", []string{"editor"}, secret)
	if err != nil {
		t.Fatal(err)
	}
	claims, err := ParseAccessToken(tok.AccessToken, secret)
	if err != nil {
		t.Fatal(err)
	}
	if claims.Subject != "u1" || len(claims.Roles) != 1 || claims.Roles[0] != "editor" {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if _, err := ParseAccessToken(tok.AccessToken, "other"); err == nil {
		t.Fatal("expected signature error")
	}
}

func TestParseAccessToken_Expired(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: jwt.NewNumericDate(past),
	}}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ParseAccessToken(signed, secret); err == nil {
		t.Fatal("expected expiry error")
	}
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatal(err)
	}
	if !CheckPassword("s3cret", hash) || CheckPassword("wrong", hash) {
		t.Fatal("bcrypt comparison mismatch")
	}
}

func newApp(t *testing.T) *fiber.App {
	t.Helper()
	ctx := context.Background()
	s, err := store.New(ctx, config.DatabaseConfig{Driver: "sqlite", Path: t.TempDir(), Name: "wpx"}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.Close)
	if err := s.Bootstrap(ctx); err != nil {
		t.Fatal(err)
	}

	app := fiber.New(fiber.Config{ErrorHandler: apperr.Handler(zerolog.Nop())})
	RegisterAuthRoutes(app, NewAuthHandler(s, secret, zerolog.Nop()))

	kindOf := func(c *fiber.Ctx) metadata.Kind { return metadata.Kind(c.Params("kind")) }
	app.Get("/protected/:kind", AuthMiddleware(secret), RequireManager(kindOf), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"data": GetUser(c).ID})
	})
	return app
}

func TestLogin(t *testing.T) {
	app := newApp(t)

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"valid", `{"email":"admin@localhost","password":"changeme"}`, 200},
		{"wrong password", `{"email":"admin@localhost","password":"nope"}`, 401},
		{"unknown user", `{"email":"ghost@localhost","password":"changeme"}`, 401},
		{"missing fields", `{}`, 401},
		{"bad json", `{`, 400},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/auth/login", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			resp, err := app.Test(req, -1)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if tt.wantStatus != 200 {
				return
			}
			var out struct {
				Data Token `json:"data"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
				t.Fatal(err)
			}
			if _, err := ParseAccessToken(out.Data.AccessToken, secret); err != nil {
				t.Fatalf("issued token invalid: %v", err)
			}
		})
	}
}

func TestMiddleware(t *testing.T) {
	app := newApp(t)
	admin, _ := GenerateAccessToken("a1", []string{"administrator"}, secret)
	editor, _ := GenerateAccessToken("e1", []string{"editor"}, secret)

	tests := []struct {
		name       string
		header     string
		kind       string
		wantStatus int
	}{
		{"no header", "", "post_type", 401},
		{"bad scheme", "Basic abc", "post_type", 401},
		{"garbage token", "Bearer abc", "post_type", 401},
		{"admin", "Bearer " + admin.AccessToken, "post_type", 200},
		{"editor on options page", "Bearer " + editor.AccessToken, "options_page", 200},
		{"editor on post type", "Bearer " + editor.AccessToken, "post_type", 403},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/protected/"+tt.kind, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req, -1)
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
		})
	}
}
