package auth

import (
	"errors"

	"go.uber.org/zap"

	"github.com/spec-kit/token-auth-service/internal/observability"
)

// TokenValidator answers whether a token is currently good.
type TokenValidator struct {
	codec   *TokenCodec
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewTokenValidator wraps a codec.
func NewTokenValidator(codec *TokenCodec, logger *zap.Logger, metrics *observability.Metrics) *TokenValidator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenValidator{codec: codec, logger: logger, metrics: metrics}
}

// HasExpired fails closed: malformed tokens are reported as expired.
// A token without an expiration claim never expires.
func (v *TokenValidator) HasExpired(token string) bool {
	claims, err := v.codec.Decode(token)
	switch {
	case err == nil:
	case errors.Is(err, ErrTokenExpired):
		v.logger.Debug("token expired", zap.Error(err))
		v.metrics.RecordAuth(observability.AuthTokenExpired)
		return true
	default:
		v.logger.Debug("token rejected", zap.Error(err))
		v.metrics.RecordAuth(observability.AuthTokenMalformed)
		return true
	}

	if !claims.HasExpiration() {
		v.logger.Debug("token has no expiration", zap.String("subject", claims.Subject))
		return false
	}
	return !v.codec.now().Before(claims.Expiration)
}

// Subject decodes the token and returns its subject. Decode errors propagate.
func (v *TokenValidator) Subject(token string) (string, error) {
	claims, err := v.codec.Decode(token)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}
