package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/token-auth-service/internal/api/dto"
	"github.com/spec-kit/token-auth-service/internal/auth"
	"github.com/spec-kit/token-auth-service/internal/service"
	apperrors "github.com/spec-kit/token-auth-service/pkg/util/errorutil"
)

// PersonsHandler serves the protected sample resources.
type PersonsHandler struct {
	persons *service.PersonService
}

// NewPersonsHandler constructs handler.
func NewPersonsHandler(persons *service.PersonService) *PersonsHandler {
	return &PersonsHandler{persons: persons}
}

// List handles GET /rest/persons.
func (h *PersonsHandler) List(c *fiber.Ctx) error {
	persons := h.persons.List(c.UserContext())
	out := make([]dto.PersonResponse, 0, len(persons))
	for _, p := range persons {
		out = append(out, dto.PersonResponse{ID: p.ID, Name: p.Name, Surname: p.Surname})
	}
	return c.JSON(fiber.Map{"data": out})
}

// Me handles GET /me.
func (h *PersonsHandler) Me(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFrom(c.UserContext())
	if !ok {
		return apperrors.NewUnauthorized("Unauthorized")
	}
	return c.JSON(fiber.Map{"data": dto.PrincipalResponse{
		Subject:     principal.Subject,
		Authorities: principal.Authorities,
	}})
}
