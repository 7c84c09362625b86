package auth

import "errors"

var (
	// ErrConfiguration reports a missing or unusable signing key. Fatal at startup.
	ErrConfiguration = errors.New("invalid token configuration")
	// ErrTokenMalformed covers unparsable tokens and tokens whose signature does not verify.
	ErrTokenMalformed = errors.New("token malformed")
	// ErrTokenExpired is returned when the token's expiration lies in the past.
	ErrTokenExpired = errors.New("token expired")
	// ErrEmptyToken reports a Bearer header without a token.
	ErrEmptyToken = errors.New("empty bearer token")
	// ErrDependencyUnavailable wraps failures of the account directory or password verifier.
	ErrDependencyUnavailable = errors.New("authentication dependency unavailable")
)
