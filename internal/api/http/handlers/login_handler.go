package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/token-auth-service/internal/api/dto"
	"github.com/spec-kit/token-auth-service/internal/auth"
	"github.com/spec-kit/token-auth-service/internal/domain"
	apperrors "github.com/spec-kit/token-auth-service/pkg/util/errorutil"
)

// Authenticator is the login use case consumed by the handler.
type Authenticator interface {
	Login(ctx context.Context, credentials domain.Credentials) (domain.LoginResult, error)
}

// LoginHandler exposes the login endpoint.
type LoginHandler struct {
	auth Authenticator
}

// NewLoginHandler constructs handler.
func NewLoginHandler(authenticator Authenticator) *LoginHandler {
	return &LoginHandler{auth: authenticator}
}

// Login handles POST /login. Failed logins are reported in the body, not the status.
func (h *LoginHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	details := map[string]any{}
	if req.Username == "" {
		details["username"] = "required"
	}
	if req.Password == "" {
		details["password"] = "required"
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("username and password required", details)
	}

	result, err := h.auth.Login(c.UserContext(), domain.Credentials{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		if errors.Is(err, auth.ErrDependencyUnavailable) {
			return apperrors.NewDependencyUnavailable(err)
		}
		return apperrors.NewInternalError(err)
	}

	return c.JSON(dto.LoginResponse{Logged: result.Logged, Token: result.Token})
}
