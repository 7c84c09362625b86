package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/token-auth-service/internal/domain"
)

// UserRepository defines persistence access for accounts. It satisfies
// auth.UserDirectory.
type UserRepository interface {
	FindByUsername(ctx context.Context, username string) (*domain.Account, error)
	Save(ctx context.Context, account *domain.Account) error
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

// FindByUsername loads the account and flattens role privileges into authorities.
// Accounts without privileges are reported as not found.
func (r *userRepository) FindByUsername(ctx context.Context, username string) (*domain.Account, error) {
	if r.pool == nil {
		return nil, errors.New("postgres pool not configured")
	}

	const query = `
        SELECT id, username, name, email, password_hash, enabled, expired, locked,
               credentials_expired, created_at, updated_at
        FROM users WHERE username=$1`

	var account domain.Account
	if err := r.pool.QueryRow(ctx, query, username).Scan(
		&account.ID,
		&account.Username,
		&account.Name,
		&account.Email,
		&account.PasswordHash,
		&account.Enabled,
		&account.Expired,
		&account.Locked,
		&account.CredentialsExpired,
		&account.CreatedAt,
		&account.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, err
	}

	privileges, err := r.privileges(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	if len(privileges) == 0 {
		return nil, fmt.Errorf("%w: %s has no authorities", domain.ErrAccountNotFound, username)
	}
	account.Privileges = privileges
	return &account, nil
}

func (r *userRepository) privileges(ctx context.Context, userID string) ([]string, error) {
	const query = `
        SELECT DISTINCT p.name
        FROM user_roles ur
        JOIN role_privileges rp ON rp.role_id = ur.role_id
        JOIN privileges p ON p.id = rp.privilege_id
        WHERE ur.user_id=$1
        ORDER BY p.name`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// Save upserts the account by username and grants its privileges through a
// personal role named after the user.
func (r *userRepository) Save(ctx context.Context, account *domain.Account) error {
	if r.pool == nil {
		return errors.New("postgres pool not configured")
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		const upsertUser = `
            INSERT INTO users (username, name, email, password_hash, enabled, expired, locked, credentials_expired)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
            ON CONFLICT (username) DO UPDATE SET
                name=EXCLUDED.name,
                email=EXCLUDED.email,
                password_hash=EXCLUDED.password_hash,
                enabled=EXCLUDED.enabled,
                expired=EXCLUDED.expired,
                locked=EXCLUDED.locked,
                credentials_expired=EXCLUDED.credentials_expired,
                updated_at=NOW()
            RETURNING id, created_at, updated_at`

		if err := tx.QueryRow(ctx, upsertUser,
			account.Username,
			account.Name,
			account.Email,
			account.PasswordHash,
			account.Enabled,
			account.Expired,
			account.Locked,
			account.CredentialsExpired,
		).Scan(&account.ID, &account.CreatedAt, &account.UpdatedAt); err != nil {
			return fmt.Errorf("upsert user: %w", err)
		}

		var roleID int
		const upsertRole = `
            INSERT INTO roles (name) VALUES ($1)
            ON CONFLICT (name) DO UPDATE SET name=EXCLUDED.name
            RETURNING id`
		if err := tx.QueryRow(ctx, upsertRole, personalRole(account.Username)).Scan(&roleID); err != nil {
			return fmt.Errorf("upsert role: %w", err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM role_privileges WHERE role_id=$1`, roleID); err != nil {
			return fmt.Errorf("clear role privileges: %w", err)
		}

		for _, privilege := range account.Privileges {
			const grant = `
                WITH p AS (
                    INSERT INTO privileges (name) VALUES ($2)
                    ON CONFLICT (name) DO UPDATE SET name=EXCLUDED.name
                    RETURNING id
                )
                INSERT INTO role_privileges (role_id, privilege_id)
                SELECT $1, id FROM p
                ON CONFLICT DO NOTHING`
			if _, err := tx.Exec(ctx, grant, roleID, privilege); err != nil {
				return fmt.Errorf("grant %s: %w", privilege, err)
			}
		}

		const link = `
            INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2)
            ON CONFLICT DO NOTHING`
		if _, err := tx.Exec(ctx, link, account.ID, roleID); err != nil {
			return fmt.Errorf("link role: %w", err)
		}
		return nil
	})
}

func personalRole(username string) string {
	return "user:" + username
}
