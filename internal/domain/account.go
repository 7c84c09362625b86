package domain

import (
	"errors"
	"time"
)

// ErrAccountNotFound is returned by directories when no usable account exists for a username.
var ErrAccountNotFound = errors.New("account not found")

// AccountStatus holds the flags gating whether an account may authenticate.
type AccountStatus struct {
	Enabled               bool
	AccountNonExpired     bool
	AccountNonLocked      bool
	CredentialsNonExpired bool
	Authorities           []string
}

// Account is the directory view of a user.
type Account struct {
	ID                 string
	Username           string
	Name               string
	Email              string
	PasswordHash       string
	Enabled            bool
	Expired            bool
	Locked             bool
	CredentialsExpired bool
	Privileges         []string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Status derives the status flags for the account.
func (a *Account) Status() AccountStatus {
	authorities := make([]string, len(a.Privileges))
	copy(authorities, a.Privileges)
	return AccountStatus{
		Enabled:               a.Enabled,
		AccountNonExpired:     !a.Expired,
		AccountNonLocked:      !a.Locked,
		CredentialsNonExpired: !a.CredentialsExpired,
		Authorities:           authorities,
	}
}
