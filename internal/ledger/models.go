package ledger

import (
	"errors"
	"time"
)

// Role classifies an account's standing. Accounts start as standard, become
// member after redeeming a key, and admin is only ever assigned manually.
type Role string

const (
	RoleStandard Role = "standard"
	RoleMember   Role = "member"
	RoleAdmin    Role = "admin"
)

// ParseRole validates a role string from external input.
func ParseRole(value string) (Role, error) {
	switch Role(value) {
	case RoleStandard, RoleMember, RoleAdmin:
		return Role(value), nil
	default:
		return "", errors.New("role must be one of standard, member, admin")
	}
}

// Account is one user's ledger record. Balance is a non-negative credit
// count; accounts are created on first contact and never deleted.
type Account struct {
	ID        int64
	Username  string
	Role      Role
	Balance   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsAdmin reports whether the account bypasses balance checks.
func (a *Account) IsAdmin() bool {
	return a != nil && a.Role == RoleAdmin
}

// RedemptionKey is a single-use code exchanged for credits and a role
// upgrade. Mutated exactly once, by the first successful redemption.
type RedemptionKey struct {
	Code      string
	Used      bool
	UsedBy    *int64
	UsedAt    *time.Time
	CreatedAt time.Time
}

// ErrAccountNotFound is returned when an account id has no ledger record.
var ErrAccountNotFound = errors.New("ledger: account not found")
