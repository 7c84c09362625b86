package auth

import (
	"context"

	"golang.org/x/crypto/bcrypt"
)

// PasswordVerifier checks a plaintext password against a stored hash.
type PasswordVerifier interface {
	Matches(ctx context.Context, plain, hash string) (bool, error)
}

// HashPassword hashes a plaintext password with configured cost.
func HashPassword(password string, cost int) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// ComparePassword verifies a password against its hashed value.
func ComparePassword(hashed, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
}

// BcryptVerifier is the bcrypt backed PasswordVerifier.
type BcryptVerifier struct{}

// NewBcryptVerifier returns a verifier.
func NewBcryptVerifier() *BcryptVerifier {
	return &BcryptVerifier{}
}

// Matches compares in a separate goroutine so the caller's deadline is honoured.
// A mismatch or a corrupt stored hash is a plain negative result.
func (BcryptVerifier) Matches(ctx context.Context, plain, hash string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	done := make(chan error, 1)
	go func() {
		done <- ComparePassword(hash, plain)
	}()

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case err := <-done:
		return err == nil, nil
	}
}
