package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/token-auth-service/internal/domain"
)

const accountKeyPrefix = "account:"

type redisUserRepository struct {
	client *redis.Client
}

// NewRedisUserRepository returns a Redis-backed implementation. Accounts live in
// a hash at account:<username> and privileges in the set account:<username>:privileges.
func NewRedisUserRepository(client *redis.Client) UserRepository {
	return &redisUserRepository{client: client}
}

func accountKey(username string) string {
	return accountKeyPrefix + username
}

func privilegesKey(username string) string {
	return accountKeyPrefix + username + ":privileges"
}

func (r *redisUserRepository) FindByUsername(ctx context.Context, username string) (*domain.Account, error) {
	if r.client == nil {
		return nil, errors.New("redis client not configured")
	}

	var (
		fieldsCmd     *redis.MapStringStringCmd
		privilegesCmd *redis.StringSliceCmd
	)
	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		fieldsCmd = pipe.HGetAll(ctx, accountKey(username))
		privilegesCmd = pipe.SMembers(ctx, privilegesKey(username))
		return nil
	})
	if err != nil {
		return nil, err
	}

	fields := fieldsCmd.Val()
	if len(fields) == 0 {
		return nil, domain.ErrAccountNotFound
	}
	privileges := privilegesCmd.Val()
	if len(privileges) == 0 {
		return nil, fmt.Errorf("%w: %s has no authorities", domain.ErrAccountNotFound, username)
	}
	sort.Strings(privileges)

	account := &domain.Account{
		ID:                 fields["id"],
		Username:           fields["username"],
		Name:               fields["name"],
		Email:              fields["email"],
		PasswordHash:       fields["password_hash"],
		Enabled:            parseFlag(fields["enabled"]),
		Expired:            parseFlag(fields["expired"]),
		Locked:             parseFlag(fields["locked"]),
		CredentialsExpired: parseFlag(fields["credentials_expired"]),
		Privileges:         privileges,
		CreatedAt:          parseTime(fields["created_at"]),
		UpdatedAt:          parseTime(fields["updated_at"]),
	}
	return account, nil
}

func (r *redisUserRepository) Save(ctx context.Context, account *domain.Account) error {
	if r.client == nil {
		return errors.New("redis client not configured")
	}

	now := time.Now().UTC()
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, accountKey(account.Username), map[string]interface{}{
			"id":                  account.ID,
			"username":            account.Username,
			"name":                account.Name,
			"email":               account.Email,
			"password_hash":       account.PasswordHash,
			"enabled":             strconv.FormatBool(account.Enabled),
			"expired":             strconv.FormatBool(account.Expired),
			"locked":              strconv.FormatBool(account.Locked),
			"credentials_expired": strconv.FormatBool(account.CredentialsExpired),
			"created_at":          account.CreatedAt.Format(time.RFC3339Nano),
			"updated_at":          account.UpdatedAt.Format(time.RFC3339Nano),
		})
		pipe.Del(ctx, privilegesKey(account.Username))
		if len(account.Privileges) > 0 {
			members := make([]interface{}, len(account.Privileges))
			for i, p := range account.Privileges {
				members[i] = p
			}
			pipe.SAdd(ctx, privilegesKey(account.Username), members...)
		}
		return nil
	})
	return err
}

func parseFlag(v string) bool {
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

func parseTime(v string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return t
}
