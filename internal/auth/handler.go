package auth

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"wpx-extend/internal/apperr"
	"wpx-extend/internal/logger"
	"wpx-extend/internal/store"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	store     *store.Store
	jwtSecret string
	log       zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(s *store.Store, jwtSecret string, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{store: s, jwtSecret: jwtSecret, log: logger.Component(log, "auth")}
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&body); err != nil {
		return apperr.InvalidPayloadError("Invalid request body")
	}
	if body.Email == "" || body.Password == "" {
		return apperr.UnauthorizedError("Email and password are required")
	}

	user, err := h.store.FindUserByEmail(c.UserContext(), body.Email)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.UnauthorizedError("Invalid email or password")
	}
	if err != nil {
		return err
	}
	if !user.Active {
		return apperr.UnauthorizedError("Account is disabled")
	}
	if !CheckPassword(body.Password, user.PasswordHash) {
		h.log.Warn().Str("email", body.Email).Msg("failed login")
		return apperr.UnauthorizedError("Invalid email or password")
	}

	token, err := GenerateAccessToken(user.ID, user.Roles, h.jwtSecret)
	if err != nil {
		return apperr.NewAppError("INTERNAL_ERROR", 500, "Failed to generate access token")
	}
	return c.JSON(fiber.Map{"data": token})
}

// RegisterAuthRoutes registers auth routes on the given Fiber app.
func RegisterAuthRoutes(app *fiber.App, h *AuthHandler) {
	app.Group("/api/auth").Post("/login", h.Login)
}
