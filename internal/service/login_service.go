package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/token-auth-service/internal/auth"
	"github.com/spec-kit/token-auth-service/internal/config"
	"github.com/spec-kit/token-auth-service/internal/domain"
	"github.com/spec-kit/token-auth-service/internal/events"
)

// LoginService verifies credentials and issues tokens.
type LoginService struct {
	directory  auth.UserDirectory
	verifier   auth.PasswordVerifier
	codec      *auth.TokenCodec
	dispatcher events.Dispatcher
	logger     *zap.Logger
	validity   time.Duration
	timeout    time.Duration
	tokenID    string
	issuer     string
	audience   string
	dummyHash  string
	now        func() time.Time
}

// LoginDependencies encapsulates collaborators for the login service.
type LoginDependencies struct {
	Directory  auth.UserDirectory
	Verifier   auth.PasswordVerifier
	Codec      *auth.TokenCodec
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewLoginService builds the service. The dummy hash used to keep unknown
// usernames as slow as wrong passwords is generated here.
func NewLoginService(cfg config.AuthConfig, deps LoginDependencies) (*LoginService, error) {
	if deps.Codec == nil {
		return nil, fmt.Errorf("%w: token codec is required", auth.ErrConfiguration)
	}
	if cfg.TokenValiditySeconds <= 0 {
		return nil, fmt.Errorf("%w: token validity must be positive", auth.ErrConfiguration)
	}

	dummyHash, err := newDummyHash(cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("generate dummy hash: %w", err)
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &LoginService{
		directory:  deps.Directory,
		verifier:   deps.Verifier,
		codec:      deps.Codec,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		validity:   cfg.TokenValidity(),
		timeout:    cfg.DependencyTimeout(),
		tokenID:    cfg.TokenID,
		issuer:     cfg.TokenIssuer,
		audience:   cfg.TokenAudience,
		dummyHash:  dummyHash,
		now:        time.Now,
	}, nil
}

// Login authenticates the credentials. Unknown users, wrong passwords and
// unusable accounts all produce the same negative result with a nil error;
// only collaborator failures return ErrDependencyUnavailable.
func (s *LoginService) Login(ctx context.Context, credentials domain.Credentials) (domain.LoginResult, error) {
	username := strings.ToLower(credentials.Username)
	s.logger.Debug("log in attempt", zap.String("username", username))

	valid, err := s.isValid(ctx, username, credentials.Password)
	if err != nil {
		return domain.LoginResult{}, err
	}
	if !valid {
		s.publish(ctx, events.Event{Type: events.EventLoginFailed, Username: username})
		return domain.LoginResult{Logged: false, Token: ""}, nil
	}

	claims := s.buildClaims(username)
	token, err := s.codec.Encode(claims)
	if err != nil {
		return domain.LoginResult{}, fmt.Errorf("encode token: %w", err)
	}

	s.logger.Debug("created token",
		zap.String("username", username),
		zap.Time("expiration", claims.Expiration))
	s.publish(ctx, events.Event{
		Type:     events.EventLoginSucceeded,
		Username: username,
		Payload:  events.LoginSucceededPayload{TokenID: claims.ID, ExpiresAt: claims.Expiration},
	})
	return domain.LoginResult{Logged: true, Token: token}, nil
}

// isValid collapses every credential check into a single boolean. The
// password is always verified, against a dummy hash when the account is missing.
func (s *LoginService) isValid(ctx context.Context, username, password string) (bool, error) {
	account, err := s.findAccount(ctx, username)
	if err != nil {
		return false, err
	}

	hash := s.dummyHash
	if account != nil {
		hash = account.PasswordHash
	}

	matches, err := s.matches(ctx, password, hash)
	if err != nil {
		return false, err
	}

	if account == nil {
		s.logger.Debug("no user for username, failed login", zap.String("username", username))
		return false, nil
	}
	if !matches {
		s.logger.Debug("password mismatch, failed login", zap.String("username", username))
		return false, nil
	}

	status := account.Status()
	if !auth.IsUsable(status) {
		s.logger.Debug("user in invalid state, failed login",
			zap.String("username", username),
			zap.Bool("enabled", status.Enabled),
			zap.Bool("account_non_expired", status.AccountNonExpired),
			zap.Bool("account_non_locked", status.AccountNonLocked),
			zap.Bool("credentials_non_expired", status.CredentialsNonExpired))
		return false, nil
	}
	return true, nil
}

func (s *LoginService) findAccount(ctx context.Context, username string) (*domain.Account, error) {
	lookupCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	account, err := s.directory.FindByUsername(lookupCtx, username)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, nil
		}
		s.logger.Error("account lookup failed", zap.String("username", username), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", auth.ErrDependencyUnavailable, err)
	}
	return account, nil
}

func (s *LoginService) matches(ctx context.Context, password, hash string) (bool, error) {
	verifyCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	ok, err := s.verifier.Matches(verifyCtx, password, hash)
	if err != nil {
		s.logger.Error("password verification failed", zap.Error(err))
		return false, fmt.Errorf("%w: %v", auth.ErrDependencyUnavailable, err)
	}
	return ok, nil
}

func (s *LoginService) buildClaims(username string) auth.TokenClaims {
	issuedAt := s.now()
	id := s.tokenID
	if id == "" {
		id = uuid.NewString()
	}
	return auth.TokenClaims{
		Subject:    username,
		IssuedAt:   issuedAt,
		NotBefore:  issuedAt,
		Expiration: issuedAt.Add(s.validity),
		Issuer:     s.issuer,
		Audience:   s.audience,
		ID:         id,
	}
}

func (s *LoginService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	event.ID = uuid.NewString()
	event.Timestamp = s.now()
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("auth event handler failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}

func (s *LoginService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func newDummyHash(cost int) (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return auth.HashPassword(base64.RawStdEncoding.EncodeToString(buf), cost)
}
