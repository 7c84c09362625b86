package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/token-auth-service/internal/domain"
)

// PersonService serves the sample protected resource.
type PersonService struct {
	logger *zap.Logger
}

// NewPersonService builds the service.
func NewPersonService(logger *zap.Logger) *PersonService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PersonService{logger: logger}
}

// List returns every person. The data set is a fixed placeholder.
func (s *PersonService) List(_ context.Context) []domain.Person {
	persons := []domain.Person{{ID: "id", Name: "Name", Surname: "Surname"}}
	s.logger.Debug("found all the persons", zap.Int("count", len(persons)))
	return persons
}
