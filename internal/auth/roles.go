package auth

import (
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/token-auth-service/pkg/util/errorutil"
)

// RequireAuthenticated rejects anonymous callers.
func RequireAuthenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := PrincipalFromContext(c); !ok {
			return apperrors.NewUnauthorized("Unauthorized")
		}
		return c.Next()
	}
}

// RequireAuthority ensures the principal holds every listed authority.
func RequireAuthority(required ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("Unauthorized")
		}
		for _, authority := range required {
			if !principal.HasAuthority(authority) {
				return apperrors.NewForbidden("insufficient authority")
			}
		}
		return c.Next()
	}
}
