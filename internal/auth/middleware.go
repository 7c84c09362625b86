package auth

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/token-auth-service/pkg/util/errorutil"
)

const principalKey = "auth_principal"

type principalCtxKey struct{}

// AuthMiddleware runs the converter for every request and attaches the
// resulting principal. Rejected requests continue anonymously.
type AuthMiddleware struct {
	converter *RequestAuthenticationConverter
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(converter *RequestAuthenticationConverter) *AuthMiddleware {
	return &AuthMiddleware{converter: converter}
}

// Handle authenticates the request from its Authorization header.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	outcome, err := m.converter.Convert(c.UserContext(), c.Get(fiber.HeaderAuthorization))
	if err != nil {
		return toHTTPError(err)
	}

	if outcome.Authenticated() {
		c.Locals(principalKey, outcome.Principal)
		c.SetUserContext(WithPrincipal(c.UserContext(), outcome.Principal))
	}
	return c.Next()
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, ErrEmptyToken):
		return apperrors.NewInvalidAuthorizationHeader()
	case errors.Is(err, ErrTokenMalformed), errors.Is(err, ErrTokenExpired):
		return apperrors.NewInvalidToken()
	case errors.Is(err, ErrDependencyUnavailable):
		return apperrors.NewDependencyUnavailable(err)
	default:
		return apperrors.NewInternalError(err)
	}
}

// PrincipalFromContext retrieves the authenticated principal.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}

// WithPrincipal stores the principal in ctx.
func WithPrincipal(ctx context.Context, principal *Principal) context.Context {
	return context.WithValue(ctx, principalCtxKey{}, principal)
}

// PrincipalFrom returns the principal stored in ctx, if any.
func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	principal, ok := ctx.Value(principalCtxKey{}).(*Principal)
	return principal, ok && principal != nil
}
