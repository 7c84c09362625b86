package auth

import "github.com/spec-kit/token-auth-service/internal/domain"

// IsUsable reports whether no flag marks the account as unusable.
func IsUsable(status domain.AccountStatus) bool {
	return status.Enabled &&
		status.AccountNonExpired &&
		status.AccountNonLocked &&
		status.CredentialsNonExpired
}
