package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"wpx-extend/internal/apperr"
	"wpx-extend/internal/metadata"
)

// AuthMiddleware returns a Fiber middleware that validates JWT tokens
// and sets the UserContext on the request.
func AuthMiddleware(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get("Authorization")
		if header == "" {
			return apperr.UnauthorizedError("Missing auth token")
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return apperr.UnauthorizedError("Invalid auth header format")
		}

		claims, err := ParseAccessToken(parts[1], secret)
		if err != nil {
			return apperr.UnauthorizedError("Invalid or expired token")
		}

		c.Locals("user", &metadata.UserContext{
			ID:    claims.Subject,
			Roles: claims.Roles,
		})

		return c.Next()
	}
}

// RequireManager rejects callers that may not change configuration of the
// kind returned by kindOf. A nil kindOf requires full administrator rights.
func RequireManager(kindOf func(c *fiber.Ctx) metadata.Kind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := GetUser(c)
		if user == nil {
			return apperr.UnauthorizedError("Missing auth token")
		}
		kind := metadata.Kind("")
		if kindOf != nil {
			kind = kindOf(c)
		}
		if !user.CanManageOptions(kind) {
			return apperr.ForbiddenError("Insufficient permissions")
		}
		return c.Next()
	}
}

// GetUser extracts the UserContext from a Fiber context.
func GetUser(c *fiber.Ctx) *metadata.UserContext {
	user, _ := c.Locals("user").(*metadata.UserContext)
	return user
}
