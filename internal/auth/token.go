package auth

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/token-auth-service/internal/config"
)

// TokenClaims is the immutable set of claims carried by a token.
// Zero values mean the claim is absent.
type TokenClaims struct {
	Subject    string
	IssuedAt   time.Time
	NotBefore  time.Time
	Expiration time.Time
	Issuer     string
	Audience   string
	ID         string
}

// HasExpiration reports whether the claims carry an expiration.
func (c TokenClaims) HasExpiration() bool {
	return !c.Expiration.IsZero()
}

// TokenCodec signs and verifies HS512 tokens. Safe for concurrent use.
type TokenCodec struct {
	secret []byte
	now    func() time.Time
}

// NewTokenCodec builds a codec around the signing key.
func NewTokenCodec(secret []byte) (*TokenCodec, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("%w: missing signing key", ErrConfiguration)
	}
	if len(secret) < config.MinSecretLength {
		return nil, fmt.Errorf("%w: signing key must be at least %d bytes, got %d", ErrConfiguration, config.MinSecretLength, len(secret))
	}
	key := make([]byte, len(secret))
	copy(key, secret)
	return &TokenCodec{secret: key, now: time.Now}, nil
}

// Encode builds and signs a compact token embedding every present claim.
func (tc *TokenCodec) Encode(claims TokenClaims) (string, error) {
	registered := jwt.RegisteredClaims{
		ID:        claims.ID,
		Issuer:    claims.Issuer,
		Subject:   claims.Subject,
		IssuedAt:  numericDate(claims.IssuedAt),
		NotBefore: numericDate(claims.NotBefore),
		ExpiresAt: numericDate(claims.Expiration),
	}
	if claims.Audience != "" {
		registered.Audience = jwt.ClaimStrings{claims.Audience}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, registered)
	tokenString, err := token.SignedString(tc.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return tokenString, nil
}

// Decode verifies the signature and returns the claims. Segments must be
// canonical base64url. The token is expired only when exp is strictly before
// now, and not yet valid when nbf is after now.
func (tc *TokenCodec) Decode(tokenStr string) (TokenClaims, error) {
	registered := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(tokenStr, registered, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS512 {
			return nil, errors.New("unexpected signing method")
		}
		return tc.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
		jwt.WithStrictDecoding(),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return TokenClaims{}, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
	if !parsed.Valid {
		return TokenClaims{}, fmt.Errorf("%w: invalid token", ErrTokenMalformed)
	}

	claims := toTokenClaims(registered)
	now := tc.now()
	if !claims.NotBefore.IsZero() && now.Before(claims.NotBefore) {
		return TokenClaims{}, fmt.Errorf("%w: %w", ErrTokenMalformed, jwt.ErrTokenNotValidYet)
	}
	if claims.HasExpiration() && now.After(claims.Expiration) {
		return TokenClaims{}, fmt.Errorf("%w: %w", ErrTokenExpired, jwt.ErrTokenExpired)
	}
	return claims, nil
}

func toTokenClaims(rc *jwt.RegisteredClaims) TokenClaims {
	claims := TokenClaims{
		Subject: rc.Subject,
		Issuer:  rc.Issuer,
		ID:      rc.ID,
	}
	if len(rc.Audience) > 0 {
		claims.Audience = rc.Audience[0]
	}
	if rc.IssuedAt != nil {
		claims.IssuedAt = rc.IssuedAt.Time
	}
	if rc.NotBefore != nil {
		claims.NotBefore = rc.NotBefore.Time
	}
	if rc.ExpiresAt != nil {
		claims.Expiration = rc.ExpiresAt.Time
	}
	return claims
}

func numericDate(t time.Time) *jwt.NumericDate {
	if t.IsZero() {
		return nil
	}
	return jwt.NewNumericDate(t)
}
