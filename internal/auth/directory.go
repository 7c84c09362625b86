package auth

import (
	"context"

	"github.com/spec-kit/token-auth-service/internal/domain"
)

// UserDirectory resolves accounts by username. Implementations return
// domain.ErrAccountNotFound when the account does not exist; any other error is
// treated as an infrastructure failure.
type UserDirectory interface {
	FindByUsername(ctx context.Context, username string) (*domain.Account, error)
}
