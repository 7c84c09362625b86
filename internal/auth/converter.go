package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/spec-kit/token-auth-service/internal/domain"
	"github.com/spec-kit/token-auth-service/internal/observability"
)

const bearerScheme = "Bearer"

// RejectReason explains an unauthenticated outcome.
type RejectReason string

const (
	ReasonNone               RejectReason = ""
	ReasonMissingCredentials RejectReason = "missing_credentials"
	ReasonInvalidScheme      RejectReason = "invalid_scheme"
	ReasonExpiredOrInvalid   RejectReason = "expired_or_invalid"
	ReasonAccountNotFound    RejectReason = "account_not_found"
	ReasonAccountUnusable    RejectReason = "account_unusable"
)

// Principal is the authenticated identity for a single request.
type Principal struct {
	Subject     string
	Authorities []string
}

// HasAuthority reports whether the principal was granted the authority.
func (p *Principal) HasAuthority(authority string) bool {
	if p == nil {
		return false
	}
	for _, a := range p.Authorities {
		if a == authority {
			return true
		}
	}
	return false
}

// Outcome is either authenticated, with a principal, or rejected with a reason.
type Outcome struct {
	Principal *Principal
	Reason    RejectReason
}

// Authenticated reports whether the outcome carries a principal.
func (o Outcome) Authenticated() bool {
	return o.Principal != nil
}

// Unauthenticated builds a rejected outcome.
func Unauthenticated(reason RejectReason) Outcome {
	return Outcome{Reason: reason}
}

// Authenticated builds an accepted outcome.
func Authenticated(subject string, authorities []string) Outcome {
	return Outcome{Principal: &Principal{Subject: subject, Authorities: authorities}}
}

// RequestAuthenticationConverter turns an Authorization header into an Outcome.
type RequestAuthenticationConverter struct {
	validator *TokenValidator
	directory UserDirectory
	timeout   time.Duration
	logger    *zap.Logger
	metrics   *observability.Metrics
}

// NewRequestAuthenticationConverter constructs the converter. A zero timeout
// leaves directory lookups bound only by the request context.
func NewRequestAuthenticationConverter(validator *TokenValidator, directory UserDirectory, timeout time.Duration, logger *zap.Logger, metrics *observability.Metrics) *RequestAuthenticationConverter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RequestAuthenticationConverter{
		validator: validator,
		directory: directory,
		timeout:   timeout,
		logger:    logger,
		metrics:   metrics,
	}
}

// Convert authenticates a request from its Authorization header value.
// Routine rejections, expiry included, are returned as outcomes. Errors are
// reserved for a Bearer header without a token, an unparsable subject and
// directory failures.
func (c *RequestAuthenticationConverter) Convert(ctx context.Context, header string) (Outcome, error) {
	token, reason, err := extractToken(header)
	if err != nil {
		return Outcome{}, err
	}
	if reason != ReasonNone {
		c.logger.Debug("request not authenticated", zap.String("reason", string(reason)))
		return c.reject(reason), nil
	}

	if c.validator.HasExpired(token) {
		c.logger.Debug("expired or invalid token")
		return c.reject(ReasonExpiredOrInvalid), nil
	}

	subject, err := c.validator.Subject(token)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			c.logger.Debug("token expired after expiration check")
			return c.reject(ReasonExpiredOrInvalid), nil
		}
		return Outcome{}, err
	}
	if subject == "" {
		c.logger.Debug("token without subject")
		return c.reject(ReasonExpiredOrInvalid), nil
	}

	lookupCtx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	account, err := c.directory.FindByUsername(lookupCtx, subject)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			c.logger.Debug("user not found", zap.String("subject", subject))
			return c.reject(ReasonAccountNotFound), nil
		}
		c.logger.Error("account lookup failed", zap.String("subject", subject), zap.Error(err))
		return Outcome{}, fmt.Errorf("%w: %v", ErrDependencyUnavailable, err)
	}

	status := account.Status()
	if !IsUsable(status) {
		c.logger.Debug("invalid user", zap.String("subject", subject))
		return c.reject(ReasonAccountUnusable), nil
	}

	c.logger.Debug("valid user", zap.String("subject", subject))
	c.metrics.RecordAuth(observability.AuthRequestAuthenticated)
	return Authenticated(subject, status.Authorities), nil
}

func (c *RequestAuthenticationConverter) reject(reason RejectReason) Outcome {
	c.metrics.RecordAuth(observability.AuthRequestRejected + ":" + string(reason))
	return Unauthenticated(reason)
}

// extractToken parses "Bearer <token>". The scheme is matched case-insensitively.
func extractToken(header string) (string, RejectReason, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ReasonMissingCredentials, nil
	}

	scheme, rest := header, ""
	if i := strings.IndexFunc(header, unicode.IsSpace); i >= 0 {
		scheme, rest = header[:i], header[i:]
	}
	if !strings.EqualFold(scheme, bearerScheme) {
		return "", ReasonInvalidScheme, nil
	}

	token := strings.TrimSpace(rest)
	if token == "" {
		return "", ReasonNone, ErrEmptyToken
	}
	return token, ReasonNone, nil
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
