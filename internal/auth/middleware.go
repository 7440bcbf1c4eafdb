package auth

import (
	"strings"

	"flockkeeper-backend/internal/apperr"

	"github.com/gofiber/fiber/v2"
)

const CtxUserIDKey = "user_id"

// JWTMiddleware resolves the bearer token to an owner id stored in Locals.
func JWTMiddleware(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return apperr.Unauthorized("missing Authorization header")
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			return apperr.Unauthorized("Authorization must be 'Bearer <token>'")
		}

		claims, err := ParseToken(secret, strings.TrimSpace(parts[1]))
		if err != nil {
			return apperr.Unauthorized("invalid or expired token")
		}

		c.Locals(CtxUserIDKey, claims.UserID)
		return c.Next()
	}
}

// OwnerID returns the authenticated user id set by JWTMiddleware.
func OwnerID(c *fiber.Ctx) (uint, error) {
	id, ok := c.Locals(CtxUserIDKey).(uint)
	if !ok || id == 0 {
		return 0, apperr.Unauthorized("authentication required")
	}
	return id, nil
}
