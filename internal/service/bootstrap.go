package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/token-auth-service/internal/auth"
	"github.com/spec-kit/token-auth-service/internal/config"
	"github.com/spec-kit/token-auth-service/internal/domain"
	"github.com/spec-kit/token-auth-service/internal/repository"
)

// BootstrapAdmin upserts an administrator holding every data privilege.
// It does nothing unless both username and password are configured.
func BootstrapAdmin(ctx context.Context, users repository.UserRepository, cfg config.BootstrapConfig, bcryptCost int, logger *zap.Logger) error {
	if cfg.AdminUsername == "" || cfg.AdminPassword == "" {
		return nil
	}

	hash, err := auth.HashPassword(cfg.AdminPassword, bcryptCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	account := &domain.Account{
		Username:     strings.ToLower(cfg.AdminUsername),
		Name:         "Administrator",
		PasswordHash: hash,
		Enabled:      true,
		Privileges:   append([]string(nil), domain.DataPrivileges...),
	}
	if err := users.Save(ctx, account); err != nil {
		return fmt.Errorf("save admin: %w", err)
	}

	logger.Info("bootstrap admin ready", zap.String("username", account.Username))
	return nil
}
